package hebillas_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/hebillas/cli"
	"github.com/sokinpui/hebillas/hebillas"
	"github.com/sokinpui/hebillas/internal/patcher"
	"github.com/sokinpui/hebillas/internal/recipe"
	"github.com/sokinpui/hebillas/internal/tool"
)

const cookiesRecipe = `name: cookies
questions:
  - name: heroku
    prompt: deploy to Heroku
    default: true
  - name: pg
    prompt: use PostgreSQL
    default: false
steps:
  - op: insert_after
    path: .gitignore
    anchor: "/tmp\n"
    payload: "/config/secrets.yml\n"
  - op: gem
    name: rails_12factor
    when: heroku
  - op: gem
    name: pg
    when: pg
  - op: copy
    source: app.json
  - op: run
    command: bundle install
  - op: say
    message: "Done with {{app_name}}"
`

const (
	gitignore = "/log/*\n/tmp\n"
	gemfile   = "source 'https://rubygems.org'\n"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newProject creates a generated project and a recipe with its files dir.
func newProject(t *testing.T, recipeContent string) (root, recipePath string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), gitignore)
	writeFile(t, filepath.Join(root, "Gemfile"), gemfile)

	recipeDir := t.TempDir()
	recipePath = filepath.Join(recipeDir, "cookies.yml")
	writeFile(t, recipePath, recipeContent)
	writeFile(t, filepath.Join(recipeDir, "files", "app.json"), `{"name": "{{app_name}}"}`+"\n")
	return root, recipePath
}

func newApp(t *testing.T, cfg *cli.Config, fake *tool.Fake) *hebillas.App {
	t.Helper()
	if cfg.RailsBin == "" {
		cfg.RailsBin = "bin/rails"
	}
	app, err := hebillas.New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	if fake != nil {
		app.SetTool(fake)
	}
	return app
}

func TestExecuteAndUndo(t *testing.T) {
	root, recipePath := newProject(t, cookiesRecipe)
	fake := &tool.Fake{}
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true, AppName: "shop"}, fake)

	var progress [][2]int
	app.SetProgressCallback(func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/log/*\n/tmp\n/config/secrets.yml\n", readFile(t, filepath.Join(root, ".gitignore")))
	assert.Equal(t, gemfile+`gem "rails_12factor"`+"\n", readFile(t, filepath.Join(root, "Gemfile")))
	assert.Equal(t, `{"name": "shop"}`+"\n", readFile(t, filepath.Join(root, "app.json")))

	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "sh -c bundle install", fake.Calls()[0].String())
	assert.Equal(t, root, fake.Calls()[0].Dir)

	assert.Equal(t, "Applied cookies.", summary.Message)
	assert.Equal(t, []string{"Done with shop"}, summary.Notes)
	assert.Equal(t, []string{"bundle install"}, summary.Commands)
	require.Len(t, summary.Created, 1)
	assert.True(t, strings.HasSuffix(summary.Created[0], "app.json"))
	assert.Len(t, summary.Modified, 2)
	assert.Empty(t, summary.Failed)

	// Five steps ran: the pg gem is gated off.
	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{0, 5}, progress[0])
	assert.Equal(t, [2]int{5, 5}, progress[len(progress)-1])

	undo := newApp(t, &cli.Config{Root: root, Undo: true}, nil)
	summary, err = undo.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Undid last run.", summary.Message)
	assert.Len(t, summary.Modified, 3)
	assert.Empty(t, summary.Failed)
	for _, p := range summary.Modified {
		abs, err := filepath.Abs(p)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(abs, root+string(filepath.Separator)), "undone path %q is outside the project", p)
	}

	assert.Equal(t, gitignore, readFile(t, filepath.Join(root, ".gitignore")))
	assert.Equal(t, gemfile, readFile(t, filepath.Join(root, "Gemfile")))
	assert.NoFileExists(t, filepath.Join(root, "app.json"))

	summary, err = undo.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No operation to undo.", summary.Message)
}

func TestExecuteDryRun(t *testing.T) {
	root, recipePath := newProject(t, cookiesRecipe)
	fake := &tool.Fake{}
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true, DryRun: true}, fake)

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Dry run: nothing was written.", summary.Message)
	assert.Equal(t, []string{"bundle install"}, summary.Commands)
	assert.Len(t, summary.Created, 1)
	assert.Empty(t, fake.Calls())

	assert.Equal(t, gitignore, readFile(t, filepath.Join(root, ".gitignore")))
	assert.NoFileExists(t, filepath.Join(root, "app.json"))
	assert.NoDirExists(t, filepath.Join(root, ".hebillas"))
}

func TestExecuteRequiredAnchorMissing(t *testing.T) {
	const content = `steps:
  - op: insert_after
    path: .gitignore
    anchor: "/coverage\n"
    payload: "/secrets\n"
    required: true
  - op: run
    command: bundle install
`
	root, recipePath := newProject(t, content)
	fake := &tool.Fake{}
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true}, fake)

	summary, err := app.Execute(context.Background())
	require.Error(t, err)

	var stepErr *recipe.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 0, stepErr.Index)
	assert.True(t, errors.Is(err, patcher.ErrAnchorNotFound))
	assert.Len(t, summary.Failed, 1)
	assert.Empty(t, fake.Calls())
}

func TestExecuteCommandFailure(t *testing.T) {
	const content = `steps:
  - op: run
    command: bundle install
    optional: true
  - op: generate
    args: [controller, welcome, index]
`
	root, recipePath := newProject(t, content)
	fake := &tool.Fake{Results: map[string]tool.Result{
		"sh -c bundle install":                        {ExitCode: 1, Stderr: "Could not locate Gemfile"},
		"bin/rails generate controller welcome index": {ExitCode: 2},
	}}
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true}, fake)

	summary, err := app.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, recipe.ErrCommandFailed))
	assert.Len(t, fake.Calls(), 2)
	assert.Len(t, summary.Failed, 2)
	assert.Contains(t, summary.Failed[0], "Could not locate Gemfile")
}

func TestExecuteEmptySource(t *testing.T) {
	root, recipePath := newProject(t, "")
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true}, nil)

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Source is empty. Nothing to process.", summary.Message)
}

func TestExecuteInvalidRecipe(t *testing.T) {
	root, recipePath := newProject(t, "steps:\n  - op: insert_after\n    path: Gemfile\n")
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath, AssumeYes: true}, nil)

	_, err := app.Execute(context.Background())
	var verr *recipe.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "requires anchor")
}

type scriptedAsker map[string]bool

func (s scriptedAsker) Confirm(question string, defaultYes bool) (bool, error) {
	if yes, ok := s[question]; ok {
		return yes, nil
	}
	return defaultYes, nil
}

func TestPrepareAsksBeforeExecute(t *testing.T) {
	root, recipePath := newProject(t, cookiesRecipe)
	app := newApp(t, &cli.Config{Root: root, Recipe: recipePath}, &tool.Fake{})
	app.SetAsker(scriptedAsker{"deploy to Heroku": false, "use PostgreSQL": true})

	require.NoError(t, app.Prepare())
	_, err := app.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, gemfile+`gem "pg"`+"\n", readFile(t, filepath.Join(root, "Gemfile")))
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := hebillas.New(&cli.Config{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

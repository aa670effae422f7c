package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/hebillas/model"
)

func TestLoad(t *testing.T) {
	r, err := Load([]byte(`name: cookies
vars:
  ruby: 2.3.0
questions:
  - name: devise
    prompt: use Devise
    default: true
  - name: admin
    prompt: generate an admin
    when: devise
steps:
  - op: gem
    name: devise
    versions: ["~> 3.5", ">= 3.5.10"]
    when: devise
  - when: [devise, "!admin"]
    inside: config
    steps:
      - op: replace
        path: routes.rb
        pattern: "^  # root 'welcome#index'$"
        regexp: true
        payload: "  root 'welcome#index'"
  - op: gem_group
    groups: [development, test]
    gems:
      - name: rspec-rails
        require: false
`))
	require.NoError(t, err)

	assert.Equal(t, "cookies", r.Name)
	assert.Equal(t, map[string]string{"ruby": "2.3.0"}, r.Vars)
	require.Len(t, r.Questions, 2)
	assert.Equal(t, Condition{"devise"}, r.Questions[1].When)
	assert.False(t, r.Questions[1].Default)

	require.Len(t, r.Steps, 3)
	assert.Equal(t, OpGem, r.Steps[0].Op)
	assert.Equal(t, []string{"~> 3.5", ">= 3.5.10"}, r.Steps[0].Versions)
	assert.True(t, r.Steps[1].IsGroup())
	assert.Equal(t, Condition{"devise", "!admin"}, r.Steps[1].When)
	assert.Equal(t, model.OpReplace, r.Steps[1].Steps[0].Op)
	require.NotNil(t, r.Steps[2].Gems[0].Require)
	assert.False(t, *r.Steps[2].Gems[0].Require)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load([]byte("steps:\n  - op: say\n    mesage: typo\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "missing fields",
			doc: `steps:
  - op: insert_before
    path: Gemfile
  - op: copy
  - op: run
  - op: generate
  - op: gem_group
`,
			want: []string{
				"steps[0]: insert_before requires anchor",
				"steps[1]: copy requires source",
				"steps[2]: run requires command",
				"steps[3]: generate requires args",
				"steps[4]: gem_group requires groups",
				"steps[4]: gem_group requires gems",
			},
		},
		{
			name: "unknown op and missing op",
			doc:  "steps:\n  - op: explode\n  - path: x\n",
			want: []string{
				`steps[0]: unknown op "explode"`,
				"steps[1]: op is required",
			},
		},
		{
			name: "conditions",
			doc: `questions:
  - name: second
    prompt: second
    when: first
  - name: first
    prompt: first
  - name: first
    prompt: again
steps:
  - op: say
    message: hi
    when: "!nope"
`,
			want: []string{
				`questions[0]: condition refers to unknown question "first"`,
				`questions[2]: duplicate question "first"`,
				`steps[0]: condition refers to unknown question "nope"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			if diff := cmp.Diff(tt.want, verr.Problems); diff != "" {
				t.Errorf("Problems mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, strings.HasPrefix(verr.Error(), "invalid recipe:"))
		})
	}
}

func TestConditionHolds(t *testing.T) {
	answers := Answers{"heroku": true, "pg": false}
	tests := []struct {
		cond Condition
		want bool
	}{
		{nil, true},
		{Condition{"heroku"}, true},
		{Condition{"pg"}, false},
		{Condition{"!pg"}, true},
		{Condition{"heroku", "!pg"}, true},
		{Condition{"heroku", "pg"}, false},
		{Condition{"never_asked"}, false},
		{Condition{"!never_asked"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cond.Holds(answers), "%v", tt.cond)
	}
}

func TestConditionRejectsMapping(t *testing.T) {
	_, err := Load([]byte("steps:\n  - op: say\n    message: hi\n    when: {a: b}\n"))
	assert.Error(t, err)
}

type fakeAsker struct {
	answers map[string]bool
	asked   []string
}

func (f *fakeAsker) Confirm(question string, defaultYes bool) (bool, error) {
	f.asked = append(f.asked, question)
	if yes, ok := f.answers[question]; ok {
		return yes, nil
	}
	return defaultYes, nil
}

func TestAsk(t *testing.T) {
	r := &Recipe{Questions: []Question{
		{Name: "devise", Prompt: "use Devise", Default: true},
		{Name: "admin", Prompt: "generate an admin", When: Condition{"devise"}},
		{Name: "heroku", Prompt: "deploy to Heroku", Default: true},
		{Name: "pipeline", Prompt: "set up a pipeline", When: Condition{"heroku"}, Default: true},
	}}

	asker := &fakeAsker{answers: map[string]bool{"use Devise": false}}
	answers, err := Ask(r, asker)
	require.NoError(t, err)

	assert.Equal(t, Answers{"devise": false, "admin": false, "heroku": true, "pipeline": true}, answers)
	assert.Equal(t, []string{"use Devise", "deploy to Heroku", "set up a pipeline"}, asker.asked)
}

func TestAskPresetReachesDependentQuestions(t *testing.T) {
	r := &Recipe{Questions: []Question{
		{Name: "devise", Prompt: "use Devise", Default: true},
		{Name: "devise_user", Prompt: "generate a User model", When: Condition{"devise"}, Default: true},
		{Name: "heroku", Prompt: "deploy to Heroku"},
		{Name: "pipeline", Prompt: "set up a pipeline", When: Condition{"heroku"}, Default: true},
	}}

	asker := &fakeAsker{}
	answers, err := AskPreset(r, asker, Answers{"devise": false, "heroku": true})
	require.NoError(t, err)

	assert.Equal(t, Answers{"devise": false, "devise_user": false, "heroku": true, "pipeline": true}, answers)
	assert.Equal(t, []string{"set up a pipeline"}, asker.asked)
}

type failingAsker struct{}

func (failingAsker) Confirm(string, bool) (bool, error) { return false, errors.New("tty closed") }

func TestAskError(t *testing.T) {
	r := &Recipe{Questions: []Question{{Name: "pg", Prompt: "use PostgreSQL"}}}
	_, err := Ask(r, failingAsker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"pg"`)
}

func TestBindings(t *testing.T) {
	r := &Recipe{Vars: map[string]string{"ruby": "2.3.0", "app_name": "from-recipe"}}

	b, err := Bindings(r, "/src/shop", "", map[string]string{"ruby": "3.3.0"})
	require.NoError(t, err)
	assert.Equal(t, "from-recipe", b["app_name"])
	assert.Equal(t, "/src/shop", b["root"])
	assert.Equal(t, "3.3.0", b["ruby"])
	assert.Len(t, b["secret_key"], 128)

	b, err = Bindings(&Recipe{}, "/src/shop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", b["app_name"])
}

func TestSecretKeyIsRandom(t *testing.T) {
	a, err := SecretKey()
	require.NoError(t, err)
	b, err := SecretKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSampleRecipe(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "recipes", "cookies.yml"))
	require.NoError(t, err)

	r, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, "cookies", r.Name)

	answers, err := Ask(r, &fakeAsker{})
	require.NoError(t, err)
	assert.True(t, answers["devise"])
	assert.False(t, answers["tmuxinator"])
	assert.False(t, answers["seed"])

	for _, ps := range Plan(r, answers) {
		if ps.Op == model.OpInsertAfter && ps.Path == "application.rb" {
			assert.True(t, strings.HasPrefix(ps.Payload, "\n    config.assets.precompile"), "payload = %q", ps.Payload)
		}
	}
}

func TestSampleRecipeTemplatesExist(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "recipes", "cookies.yml"))
	require.NoError(t, err)
	r, err := Load(data)
	require.NoError(t, err)

	templates := filepath.Join("..", "..", "recipes", "files")
	allYes := make(Answers, len(r.Questions))
	for _, q := range r.Questions {
		allYes[q.Name] = true
	}
	erb := make(Answers, len(allYes))
	for k, v := range allYes {
		erb[k] = v
	}
	erb["haml"] = false

	stylesheets := map[string]bool{}
	copied := 0
	for _, answers := range []Answers{allYes, erb} {
		for _, ps := range Plan(r, answers) {
			switch ps.Op {
			case model.OpCopy:
				copied++
				src := joinDir(ps.Dir, ps.Source)
				assert.FileExists(t, filepath.Join(templates, src), "copy source of %s", src)
				if ps.Dir == filepath.Join("app", "assets", "stylesheets") {
					stylesheets[ps.Source] = true
				}
			case model.OpCreate:
				if ps.Dir == filepath.Join("app", "assets", "stylesheets") {
					stylesheets[ps.Path] = true
				}
			}
		}
	}
	assert.Greater(t, copied, 0)

	// Every partial imported by the copied application.scss is provided.
	scss, err := os.ReadFile(filepath.Join(templates, "app", "assets", "stylesheets", "application.scss"))
	require.NoError(t, err)
	imports := regexp.MustCompile(`@import '([^']+)';`).FindAllStringSubmatch(string(scss), -1)
	require.NotEmpty(t, imports)
	for _, m := range imports {
		assert.True(t, stylesheets["_"+m[1]+".scss"], "no step provides _%s.scss", m[1])
	}
}

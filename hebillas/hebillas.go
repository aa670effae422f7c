package hebillas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sokinpui/hebillas/cli"
	"github.com/sokinpui/hebillas/internal/fs"
	"github.com/sokinpui/hebillas/internal/logging"
	"github.com/sokinpui/hebillas/internal/parser"
	"github.com/sokinpui/hebillas/internal/patcher"
	"github.com/sokinpui/hebillas/internal/prompt"
	"github.com/sokinpui/hebillas/internal/recipe"
	"github.com/sokinpui/hebillas/internal/source"
	"github.com/sokinpui/hebillas/internal/state"
	"github.com/sokinpui/hebillas/internal/tool"
	"github.com/sokinpui/hebillas/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	logger           *zap.Logger
	pathResolver     *fs.PathResolver
	sourceProvider   *source.SourceProvider
	tool             tool.ExternalTool
	asker            recipe.Asker
	progressCallback ProgressUpdate

	prepared bool
	recipe   *recipe.Recipe
	preset   recipe.Answers
	answers  recipe.Answers
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	pathResolver, err := fs.NewPathResolver(cfg.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(pathResolver.Root())
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root '%s' is not a directory", pathResolver.Root())
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	var asker recipe.Asker = prompt.NewLineAsker(os.Stdin, os.Stderr)
	if cfg.AssumeYes {
		asker = prompt.DefaultsAsker{}
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pathResolver:   pathResolver,
		sourceProvider: source.New(),
		tool:           tool.NewExecTool(),
		asker:          asker,
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetAsker replaces the source of answers to the recipe's questions.
func (a *App) SetAsker(asker recipe.Asker) {
	a.asker = asker
}

// SetTool replaces the tool used for run and generate steps.
func (a *App) SetTool(t tool.ExternalTool) {
	a.tool = t
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.logger.Sync()
}

// Prepare loads the recipe and asks its questions. It must run before any
// display takes over the terminal. Execute calls it when it has not run yet.
func (a *App) Prepare() error {
	if a.prepared || a.cfg.Undo {
		return nil
	}
	content, err := a.sourceProvider.GetContent(a.cfg.Recipe)
	if err != nil {
		return err
	}
	return a.prepareContent(content)
}

func (a *App) prepareContent(content string) error {
	a.prepared = true
	if content == "" {
		return nil
	}
	content, err := parser.ExtractRecipe(content)
	if err != nil {
		return fmt.Errorf("failed to read markdown recipe: %w", err)
	}

	r, err := recipe.Load([]byte(content))
	if err != nil {
		return err
	}
	answers, err := recipe.AskPreset(r, a.asker, a.preset)
	if err != nil {
		return err
	}
	a.logger.Debug("recipe prepared",
		zap.String("recipe", r.Name),
		zap.Int("questions", len(r.Questions)),
		zap.Any("answers", answers))

	a.recipe = r
	a.answers = answers
	return nil
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	if a.cfg.Undo {
		return a.undoLastOperation()
	}
	return a.processContent(ctx)
}

// processContent runs the prepared recipe against the project root and
// records the touched files for undo.
func (a *App) processContent(ctx context.Context) (model.Summary, error) {
	if err := a.Prepare(); err != nil {
		return model.Summary{}, err
	}
	if a.recipe == nil {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	root := a.pathResolver.Root()
	bindings, err := recipe.Bindings(a.recipe, root, a.cfg.AppName, a.cfg.Vars)
	if err != nil {
		return model.Summary{}, err
	}

	engineOpts := []patcher.Option{
		patcher.WithTemplateDir(a.templateDir()),
		patcher.WithDryRun(a.cfg.DryRun),
		patcher.WithLogger(a.logger),
	}
	var run *state.Run
	if !a.cfg.DryRun {
		stateManager, err := state.New(root)
		if err != nil {
			return model.Summary{}, fmt.Errorf("failed to initialize state manager: %w", err)
		}
		run = stateManager.Begin()
		engineOpts = append(engineOpts, patcher.WithBeforeWrite(run.BeforeWrite))
	}
	engine := patcher.NewEngine(a.pathResolver, engineOpts...)

	runner := recipe.NewRunner(engine, a.tool,
		recipe.WithRailsBin(a.cfg.RailsBin),
		recipe.WithRunnerDryRun(a.cfg.DryRun),
		recipe.WithProgress(recipe.ProgressFunc(a.progressCallback)),
		recipe.WithRunnerLogger(a.logger),
	)

	summary, runErr := runner.Run(ctx, a.recipe, a.answers, bindings)
	if run != nil {
		// Partial runs are recorded too, so they can be undone.
		if err := run.Commit(); err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("failed to record run: %w", err))
		} else {
			a.logger.Info("run recorded", zap.String("id", run.ID), zap.Int("files", len(run.Paths())))
		}
	}

	switch {
	case a.cfg.DryRun:
		summary.Message = "Dry run: nothing was written."
	case runErr == nil && a.recipe.Name != "":
		summary.Message = fmt.Sprintf("Applied %s.", a.recipe.Name)
	}
	a.relativizeSummaryPaths(&summary)
	return summary, runErr
}

// templateDir is the --templates flag, or a 'files' directory next to the
// recipe file when it exists.
func (a *App) templateDir() string {
	if a.cfg.Templates != "" {
		abs, err := filepath.Abs(a.cfg.Templates)
		if err != nil {
			return a.cfg.Templates
		}
		return abs
	}
	if a.cfg.Recipe == "" || a.cfg.Recipe == "-" {
		return ""
	}
	dir, err := filepath.Abs(filepath.Join(filepath.Dir(a.cfg.Recipe), "files"))
	if err != nil {
		return ""
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	stateManager, err := state.New(a.pathResolver.Root())
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	if len(stateManager.Entries()) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	if a.progressCallback != nil {
		a.progressCallback(0, 1)
	}
	undone, failed, err := stateManager.Undo()
	if a.progressCallback != nil {
		a.progressCallback(1, 1)
	}

	summary := model.Summary{
		Modified: a.projectPaths(undone),
		Failed:   a.projectPaths(failed),
		Message:  "Undid last run.",
	}
	a.relativizeSummaryPaths(&summary)
	summary.Failed = a.relativePaths(summary.Failed)
	return summary, err
}

// projectPaths turns the absolute paths recorded in the journal into
// project-relative ones, the form the runner reports.
func (a *App) projectPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = a.pathResolver.Rel(p)
	}
	return out
}

// relativizeSummaryPaths converts file paths in a summary to be relative to
// the current working directory for cleaner display. Paths reported by the
// runner are relative to the project root.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	summary.Created = a.relativePaths(summary.Created)
	summary.Modified = a.relativePaths(summary.Modified)
	summary.Removed = a.relativePaths(summary.Removed)
}

func (a *App) relativePaths(paths []string) []string {
	wd, err := os.Getwd()
	if err != nil {
		// Cannot get CWD, so we can't make paths relative.
		return paths
	}
	relPaths := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(wd, a.pathResolver.Resolve(p))
		if err != nil {
			relPaths[i] = p
		} else {
			relPaths[i] = rel
		}
	}
	return relPaths
}

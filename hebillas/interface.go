package hebillas

import (
	"context"
	"fmt"

	"github.com/sokinpui/hebillas/cli"
	"github.com/sokinpui/hebillas/internal/fs"
	"github.com/sokinpui/hebillas/internal/patcher"
	"github.com/sokinpui/hebillas/internal/prompt"
	"github.com/sokinpui/hebillas/internal/state"
	"github.com/sokinpui/hebillas/model"
)

// Config for using hebillas as a library.
type Config struct {
	// Project root. Empty means the current directory.
	Root string
	// Directory copy requests read their sources from.
	Templates string
	// Show what would change without writing anything.
	DryRun bool
	// Extra bindings for recipes, e.g. {"ruby": "2.3.0"}.
	Vars map[string]string
	// Answers overriding question defaults, keyed by question name.
	Answers map[string]bool
}

// Apply applies patch requests in order and records them for undo.
// It stops at the first request that fails and returns a summary of the
// operations in a map.
func Apply(reqs []model.PatchRequest, config Config) (map[string][]string, error) {
	resolver, err := fs.NewPathResolver(config.Root)
	if err != nil {
		return nil, err
	}

	opts := []patcher.Option{
		patcher.WithTemplateDir(config.Templates),
		patcher.WithDryRun(config.DryRun),
	}
	var run *state.Run
	if !config.DryRun {
		stateManager, err := state.New(resolver.Root())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize state manager: %w", err)
		}
		run = stateManager.Begin()
		opts = append(opts, patcher.WithBeforeWrite(run.BeforeWrite))
	}
	engine := patcher.NewEngine(resolver, opts...)

	result := map[string][]string{
		"Created":  {},
		"Modified": {},
		"Removed":  {},
		"Skipped":  {},
	}
	var applyErr error
	for _, req := range reqs {
		res, err := engine.Apply(req)
		if err != nil {
			applyErr = err
			break
		}
		switch {
		case !res.Found:
			result["Skipped"] = append(result["Skipped"], req.Path)
		case !res.Changed:
		case req.Op == model.OpRemove:
			result["Removed"] = append(result["Removed"], req.Path)
		case res.Created:
			result["Created"] = append(result["Created"], req.Path)
		default:
			result["Modified"] = append(result["Modified"], req.Path)
		}
	}

	if run != nil {
		if err := run.Commit(); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("failed to record run: %w", err)
		}
	}
	return result, applyErr
}

// ApplyRecipe runs a recipe document (YAML, or Markdown holding a fenced
// yaml block) against the project without asking any questions.
func ApplyRecipe(ctx context.Context, content string, config Config) (model.Summary, error) {
	app, err := New(&cli.Config{
		Root:      config.Root,
		Templates: config.Templates,
		DryRun:    config.DryRun,
		Vars:      config.Vars,
		RailsBin:  "bin/rails",
	})
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize hebillas app: %w", err)
	}
	defer app.Close()

	app.SetAsker(prompt.DefaultsAsker{})
	app.preset = config.Answers
	if err := app.prepareContent(content); err != nil {
		return model.Summary{}, err
	}
	return app.Execute(ctx)
}

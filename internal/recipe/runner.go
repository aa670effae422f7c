package recipe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/hebillas/internal/gemfile"
	"github.com/sokinpui/hebillas/internal/patcher"
	"github.com/sokinpui/hebillas/internal/tool"
	"github.com/sokinpui/hebillas/model"
)

const manifestPath = "Gemfile"

// ProgressFunc reports how many of the planned steps have finished.
type ProgressFunc func(current, total int)

// PlannedStep is a step whose condition held, with the directory of its
// enclosing groups resolved.
type PlannedStep struct {
	Step
	Dir string
}

// Plan flattens the recipe's steps for the given answers, dropping steps
// whose conditions do not hold.
func Plan(r *Recipe, answers Answers) []PlannedStep {
	var planned []PlannedStep
	var walk func(dir string, steps []Step)
	walk = func(dir string, steps []Step) {
		for _, s := range steps {
			if !s.When.Holds(answers) {
				continue
			}
			if s.IsGroup() {
				walk(joinDir(dir, s.Inside), s.Steps)
				continue
			}
			planned = append(planned, PlannedStep{Step: s, Dir: dir})
		}
	}
	walk("", r.Steps)
	return planned
}

func joinDir(dir, p string) string {
	if p == "" {
		return dir
	}
	if dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// StepError is returned when a step aborts the run.
type StepError struct {
	Index int
	Op    model.Op
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrCommandFailed is wrapped by errors for commands that exit non-zero.
var ErrCommandFailed = errors.New("command failed")

// Runner executes planned steps one after another.
type Runner struct {
	engine   *patcher.Engine
	tool     tool.ExternalTool
	logger   *zap.Logger
	railsBin string
	dryRun   bool
	progress ProgressFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRailsBin sets the executable used by generate steps.
func WithRailsBin(bin string) RunnerOption {
	return func(r *Runner) { r.railsBin = bin }
}

// WithRunnerDryRun records commands without running them.
func WithRunnerDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) { r.progress = fn }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. External commands go through t.
func NewRunner(engine *patcher.Engine, t tool.ExternalTool, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:   engine,
		tool:     t,
		logger:   zap.NewNop(),
		railsBin: "bin/rails",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run plans the recipe for answers and executes it. The summary covers every
// step that ran, including when an aborting error is returned.
func (rn *Runner) Run(ctx context.Context, r *Recipe, answers Answers, bindings map[string]string) (model.Summary, error) {
	steps := Plan(r, answers)
	var summary model.Summary

	total := len(steps)
	if rn.progress != nil {
		rn.progress(0, total)
	}

	for i, ps := range steps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		err := rn.runStep(ctx, ps, answers, bindings, &summary)
		if err != nil {
			rn.logger.Warn("step failed",
				zap.Int("step", i+1),
				zap.String("op", string(ps.Op)),
				zap.Bool("optional", ps.Optional),
				zap.Error(err))
			summary.Failed = append(summary.Failed, describe(ps, err))
			if !ps.Optional {
				return summary, &StepError{Index: i, Op: ps.Op, Err: err}
			}
		}

		if rn.progress != nil {
			rn.progress(i+1, total)
		}
	}
	return summary, nil
}

func describe(ps PlannedStep, err error) string {
	target := ps.Path
	switch {
	case ps.Op == model.OpCopy && target == "":
		target = ps.Source
	case ps.Op == OpRun:
		target = ps.Command
	case ps.Op == OpGenerate:
		target = strings.Join(ps.Args, " ")
	case target == "":
		target = manifestPath
	}
	return fmt.Sprintf("%s (%s): %v", joinDir(ps.Dir, target), ps.Op, err)
}

func (rn *Runner) runStep(ctx context.Context, ps PlannedStep, answers Answers, bindings map[string]string, summary *model.Summary) error {
	render := func(s string) (string, error) {
		if ps.Raw || s == "" {
			return s, nil
		}
		return patcher.Render(s, bindings)
	}

	switch ps.Op {
	case OpSay:
		msg, err := render(ps.Message)
		if err != nil {
			return err
		}
		summary.Notes = append(summary.Notes, msg)
		return nil

	case OpRun:
		line, err := render(ps.Command)
		if err != nil {
			return err
		}
		dir := rn.dir(ps.Dir)
		return rn.command(ctx, dir, line, summary, func(ctx context.Context) (tool.Result, error) {
			return tool.Shell(ctx, rn.tool, dir, line)
		})

	case OpGenerate:
		args := make([]string, 0, len(ps.Args)+1)
		args = append(args, "generate")
		for _, a := range ps.Args {
			ra, err := render(a)
			if err != nil {
				return err
			}
			args = append(args, ra)
		}
		dir := rn.engine.Resolver().Root()
		line := tool.Call{Command: rn.railsBin, Args: args}.String()
		return rn.command(ctx, dir, line, summary, func(ctx context.Context) (tool.Result, error) {
			return rn.tool.Run(ctx, dir, rn.railsBin, args...)
		})

	case OpGem, OpGemGroup:
		payload := gemPayload(ps.Step, answers)
		if payload == "" {
			return nil
		}
		return rn.patch(ps, model.PatchRequest{Op: model.OpAppend, Path: manifestPath, Payload: payload, Force: true}, summary)
	}

	req := model.PatchRequest{
		Op:        ps.Op,
		Regexp:    ps.Regexp,
		Overwrite: ps.Overwrite,
		Force:     ps.Force,
		Bindings:  bindings,
	}
	if ps.All {
		req.Occurrence = model.All
	}

	fields := []struct {
		dst *string
		src string
	}{
		{&req.Path, ps.Path},
		{&req.Anchor, ps.Anchor},
		{&req.Pattern, ps.Pattern},
		{&req.Payload, ps.Payload},
		{&req.Source, ps.Source},
	}
	for _, f := range fields {
		v, err := render(f.src)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	if req.Op == model.OpCopy && req.Path == "" {
		req.Path = req.Source
	}
	req.Path = joinDir(ps.Dir, req.Path)
	if req.Source != "" {
		req.Source = joinDir(ps.Dir, req.Source)
	}
	req.Verbatim = ps.Raw
	return rn.patch(ps, req, summary)
}

func (rn *Runner) patch(ps PlannedStep, req model.PatchRequest, summary *model.Summary) error {
	res, err := rn.engine.Apply(req)
	if err != nil {
		return err
	}

	if !res.Found {
		if ps.Required {
			return &patcher.PatchError{Op: req.Op, Path: req.Path, Err: patcher.NotFoundError(req.Op)}
		}
		summary.Skipped = append(summary.Skipped, fmt.Sprintf("%s (%s): %s not found", req.Path, req.Op, lookupTarget(req.Op)))
		rn.logger.Info("patch skipped", zap.String("path", req.Path), zap.String("op", string(req.Op)))
		return nil
	}

	switch {
	case !res.Changed:
	case req.Op == model.OpRemove:
		summary.Removed = appendUnique(summary.Removed, req.Path)
	case res.Created:
		summary.Created = appendUnique(summary.Created, req.Path)
	default:
		if !contains(summary.Created, req.Path) {
			summary.Modified = appendUnique(summary.Modified, req.Path)
		}
	}
	return nil
}

// command records line in the summary and calls run unless this is a dry run.
func (rn *Runner) command(ctx context.Context, dir, line string, summary *model.Summary, run func(context.Context) (tool.Result, error)) error {
	summary.Commands = append(summary.Commands, line)

	if rn.dryRun {
		rn.logger.Info("dry run, command not executed", zap.String("command", line))
		return nil
	}

	rn.logger.Info("running command", zap.String("command", line), zap.String("dir", dir))
	res, err := run(ctx)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		return fmt.Errorf("%w: %s exited with status %d: %s", ErrCommandFailed, line, res.ExitCode, msg)
	}
	return nil
}

func lookupTarget(op model.Op) string {
	switch op {
	case model.OpReplace, model.OpDelete:
		return "pattern"
	case model.OpRemove:
		return "path"
	default:
		return "anchor"
	}
}

// gemPayload renders a gem or gem_group step. Gems of a group whose
// condition does not hold are left out.
func gemPayload(s Step, answers Answers) string {
	if s.Op == OpGem {
		return gemfile.Declaration(gemfile.Gem{Name: s.Name, Versions: s.Versions, Require: s.Require})
	}
	gems := make([]gemfile.Gem, 0, len(s.Gems))
	for _, g := range s.Gems {
		if !g.When.Holds(answers) {
			continue
		}
		gems = append(gems, gemfile.Gem{Name: g.Name, Versions: g.Versions, Require: g.Require})
	}
	if len(gems) == 0 {
		return ""
	}
	return gemfile.Group(s.Groups, gems)
}

func (rn *Runner) dir(rel string) string {
	return rn.engine.Resolver().Resolve(rel)
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package patcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sokinpui/hebillas/internal/fs"
	"github.com/sokinpui/hebillas/model"
)

// BeforeWriteFunc is called with the absolute path of a file right before the
// engine mutates or removes it. existed is false for files about to be created.
// Returning an error cancels the write.
type BeforeWriteFunc func(absPath string, existed bool) error

// Engine applies patch requests to files under a project root.
type Engine struct {
	resolver    *fs.PathResolver
	templateDir string
	dryRun      bool
	beforeWrite BeforeWriteFunc
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTemplateDir sets the directory copy requests read their sources from.
func WithTemplateDir(dir string) Option {
	return func(e *Engine) { e.templateDir = dir }
}

// WithDryRun makes the engine compute results without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithBeforeWrite installs a hook run before every write.
func WithBeforeWrite(fn BeforeWriteFunc) Option {
	return func(e *Engine) { e.beforeWrite = fn }
}

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine rooted at the resolver's root.
func NewEngine(resolver *fs.PathResolver, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolver returns the path resolver of the engine.
func (e *Engine) Resolver() *fs.PathResolver {
	return e.resolver
}

// Apply executes req against the file it names.
func (e *Engine) Apply(req model.PatchRequest) (model.PatchResult, error) {
	switch req.Op {
	case model.OpCreate:
		return e.Create(req.Path, req.Payload, req.Overwrite)
	case model.OpCopy:
		return e.copy(req.Source, req.Path, req.Bindings, req.Overwrite, req.Verbatim)
	case model.OpRemove:
		return e.Remove(req.Path)
	}

	abs := e.resolver.Resolve(req.Path)
	content, err := readFile(abs)
	if err != nil {
		return model.PatchResult{Path: req.Path}, &PatchError{Op: req.Op, Path: req.Path, Err: err}
	}

	res, err := Transform(content, req)
	if err != nil {
		return res, &PatchError{Op: req.Op, Path: req.Path, Err: err}
	}
	if !res.Found {
		e.logger.Debug("patch target not matched",
			zap.String("op", string(req.Op)),
			zap.String("path", req.Path))
		return res, nil
	}
	if !res.Changed {
		return res, nil
	}

	if err := e.write(abs, res.Content, true); err != nil {
		return model.PatchResult{Path: req.Path, Content: content}, &PatchError{Op: req.Op, Path: req.Path, Err: err}
	}
	e.logger.Debug("patched file", zap.String("op", string(req.Op)), zap.String("path", req.Path))
	return res, nil
}

// Create writes content to a new file at path. It fails with
// ErrAlreadyExists when the file exists and overwrite is false.
func (e *Engine) Create(path, content string, overwrite bool) (model.PatchResult, error) {
	res := model.PatchResult{Path: path, Content: content, Found: true}
	abs := e.resolver.Resolve(path)

	exists, err := fs.Exists(abs)
	if err != nil {
		return res, &PatchError{Op: model.OpCreate, Path: path, Err: &IOError{Err: err}}
	}
	if exists && !overwrite {
		return res, &PatchError{Op: model.OpCreate, Path: path, Err: ErrAlreadyExists}
	}

	if exists {
		current, err := readFile(abs)
		if err != nil {
			return res, &PatchError{Op: model.OpCreate, Path: path, Err: err}
		}
		if current == content {
			res.Success = true
			return res, nil
		}
	}

	if err := e.write(abs, content, exists); err != nil {
		return res, &PatchError{Op: model.OpCreate, Path: path, Err: err}
	}
	res.Success = true
	res.Changed = true
	res.Created = !exists
	e.logger.Debug("created file", zap.String("path", path), zap.Bool("overwrite", exists))
	return res, nil
}

// CopyWithSubstitution renders the template source with bindings and writes
// the result to dest. Existing destinations are not overwritten.
func (e *Engine) CopyWithSubstitution(source, dest string, bindings map[string]string) (model.PatchResult, error) {
	return e.copy(source, dest, bindings, false, false)
}

func (e *Engine) copy(source, dest string, bindings map[string]string, overwrite, verbatim bool) (model.PatchResult, error) {
	if dest == "" {
		dest = source
	}
	src := source
	if !filepath.IsAbs(src) {
		if e.templateDir != "" {
			src = filepath.Join(e.templateDir, source)
		} else {
			src = e.resolver.Resolve(source)
		}
	}

	tmpl, err := readFile(src)
	if err != nil {
		return model.PatchResult{Path: dest}, &PatchError{Op: model.OpCopy, Path: source, Err: err}
	}
	rendered := tmpl
	if !verbatim {
		rendered, err = Render(tmpl, bindings)
		if err != nil {
			return model.PatchResult{Path: dest}, &PatchError{Op: model.OpCopy, Path: source, Err: err}
		}
	}

	res, err := e.Create(dest, rendered, overwrite)
	if err != nil {
		var pe *PatchError
		if errors.As(err, &pe) {
			pe.Op = model.OpCopy
		}
		return res, err
	}
	return res, nil
}

// Remove deletes the file or directory at path. A missing path is reported
// with Found=false and no error.
func (e *Engine) Remove(path string) (model.PatchResult, error) {
	res := model.PatchResult{Path: path}
	abs := e.resolver.Resolve(path)

	exists, err := fs.Exists(abs)
	if err != nil {
		return res, &PatchError{Op: model.OpRemove, Path: path, Err: &IOError{Err: err}}
	}
	if !exists {
		return res, nil
	}
	res.Found = true

	if !e.dryRun {
		if e.beforeWrite != nil {
			if err := e.beforeWrite(abs, true); err != nil {
				return res, &PatchError{Op: model.OpRemove, Path: path, Err: err}
			}
		}
		if err := os.RemoveAll(abs); err != nil {
			return res, &PatchError{Op: model.OpRemove, Path: path, Err: &IOError{Err: err}}
		}
	}
	res.Success = true
	res.Changed = true
	e.logger.Debug("removed path", zap.String("path", path))
	return res, nil
}

func (e *Engine) write(abs, content string, existed bool) error {
	if e.dryRun {
		return nil
	}
	if e.beforeWrite != nil {
		if err := e.beforeWrite(abs, existed); err != nil {
			return fmt.Errorf("before write hook: %w", err)
		}
	}
	if err := fs.WriteFileAtomic(abs, []byte(content)); err != nil {
		return &IOError{Err: err}
	}
	return nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrPathNotFound
		}
		return "", &IOError{Err: err}
	}
	return string(data), nil
}

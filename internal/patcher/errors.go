package patcher

import (
	"errors"
	"fmt"

	"github.com/sokinpui/hebillas/model"
)

var (
	ErrAnchorNotFound  = errors.New("anchor not found")
	ErrPatternNotFound = errors.New("pattern not found")
	ErrPathNotFound    = errors.New("path not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrTemplateRender  = errors.New("template render error")
)

// PatchError records the operation and path that failed.
type PatchError struct {
	Op   model.Op
	Path string
	Err  error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// IOError wraps a read or write failure that is not one of the sentinel conditions.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return "io error: " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// TemplateError describes a malformed placeholder.
type TemplateError struct {
	// Offset is the byte offset of the placeholder in the template.
	Offset int
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", ErrTemplateRender, e.Offset, e.Reason)
}

func (e *TemplateError) Is(target error) bool { return target == ErrTemplateRender }

// NotFoundError returns the sentinel matching a failed lookup for op.
func NotFoundError(op model.Op) error {
	switch op {
	case model.OpInsertAfter, model.OpInsertBefore:
		return ErrAnchorNotFound
	default:
		return ErrPatternNotFound
	}
}

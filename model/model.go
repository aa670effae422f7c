package model

// Op is the kind of a patch operation.
type Op string

const (
	OpInsertAfter  Op = "insert_after"
	OpInsertBefore Op = "insert_before"
	OpReplace      Op = "replace"
	OpDelete       Op = "delete"
	OpAppend       Op = "append"
	OpCreate       Op = "create"
	OpCopy         Op = "copy"
	OpRemove       Op = "remove"
)

// Occurrence selects which matches of a pattern are affected.
type Occurrence int

const (
	// First affects only the first match. It is the zero value.
	First Occurrence = iota
	// All affects every match.
	All
)

// PatchRequest describes a single patch against a file in the project.
type PatchRequest struct {
	// Path is relative to the project root.
	Path string
	Op   Op
	// Anchor is the literal text located by insert operations.
	Anchor string
	// Pattern is matched by replace and delete. It is a literal unless Regexp is set.
	Pattern string
	Regexp  bool
	// Payload is the text to insert, the replacement, or the content of a created file.
	Payload    string
	Occurrence Occurrence
	// Source is the template name for copy requests, relative to the template directory.
	Source   string
	Bindings map[string]string
	// Verbatim copies the source without placeholder substitution.
	Verbatim bool
	// Overwrite allows create and copy to replace an existing file.
	Overwrite bool
	// Force disables the already-present check of insert operations.
	Force bool
}

// PatchResult reports the outcome of applying a PatchRequest.
type PatchResult struct {
	Path    string
	Success bool
	// Found is false when the anchor or pattern did not occur in the content.
	Found bool
	// AlreadyPresent is set when an insert was skipped because the payload was already in place.
	AlreadyPresent bool
	// Changed is true when the content on disk differs from the content before the call.
	Changed bool
	// Created is true when the target did not exist before the call.
	Created bool
	Content string
}

// Summary holds the results of a run for display.
type Summary struct {
	Created  []string
	Modified []string
	Removed  []string
	Skipped  []string
	Failed   []string
	Commands []string
	// Notes are messages a recipe asked to show the operator.
	Notes   []string
	Message string
}

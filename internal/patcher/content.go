package patcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/hebillas/model"
)

// InsertAfter splices payload right after the first literal occurrence of anchor.
// The anchor is matched byte for byte, including any line terminator it carries.
func InsertAfter(content, anchor, payload string) (string, bool) {
	i := strings.Index(content, anchor)
	if anchor == "" || i < 0 {
		return content, false
	}
	at := i + len(anchor)
	return content[:at] + payload + content[at:], true
}

// InsertBefore splices payload right before the first literal occurrence of anchor.
func InsertBefore(content, anchor, payload string) (string, bool) {
	i := strings.Index(content, anchor)
	if anchor == "" || i < 0 {
		return content, false
	}
	return content[:i] + payload + content[i:], true
}

// Pattern is a compiled literal or regular expression.
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// Literal returns a pattern that matches s exactly.
func Literal(s string) Pattern {
	return Pattern{literal: s}
}

// CompileRegexp compiles expr in multi-line mode so that ^ and $ match at line boundaries.
func CompileRegexp(expr string) (Pattern, error) {
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

func (p Pattern) String() string {
	if p.re != nil {
		return p.re.String()
	}
	return p.literal
}

// Replace substitutes the first match of p, or every match with model.All.
// For regular expressions, $1 style references in replacement are expanded.
func Replace(content string, p Pattern, replacement string, occ model.Occurrence) (string, bool) {
	if p.re == nil {
		if p.literal == "" || !strings.Contains(content, p.literal) {
			return content, false
		}
		n := 1
		if occ == model.All {
			n = -1
		}
		return strings.Replace(content, p.literal, replacement, n), true
	}

	if occ == model.All {
		if !p.re.MatchString(content) {
			return content, false
		}
		return p.re.ReplaceAllString(content, replacement), true
	}

	m := p.re.FindStringSubmatchIndex(content)
	if m == nil {
		return content, false
	}
	var b []byte
	b = append(b, content[:m[0]]...)
	b = p.re.ExpandString(b, replacement, content, m)
	b = append(b, content[m[1]:]...)
	return string(b), true
}

// DeleteMatching removes the matches of p.
func DeleteMatching(content string, p Pattern, occ model.Occurrence) (string, bool) {
	return Replace(content, p, "", occ)
}

// payloadPresent reports whether an insert of payload at anchor has already
// happened. Inserts are checked at the splice point of the first occurrence.
func payloadPresent(content, anchor, payload string, op model.Op) bool {
	if payload == "" {
		return true
	}
	switch op {
	case model.OpInsertAfter:
		i := strings.Index(content, anchor)
		return i >= 0 && strings.HasPrefix(content[i+len(anchor):], payload)
	case model.OpInsertBefore:
		i := strings.Index(content, anchor)
		return i >= 0 && strings.HasSuffix(content[:i], payload)
	case model.OpAppend:
		return strings.HasSuffix(content, payload)
	}
	return false
}

// Transform applies a content-level request and reports what happened.
// Create, copy and remove requests are not content transformations and return an error.
func Transform(content string, req model.PatchRequest) (model.PatchResult, error) {
	res := model.PatchResult{Path: req.Path, Content: content}

	var (
		out   string
		found bool
	)
	switch req.Op {
	case model.OpInsertAfter, model.OpInsertBefore:
		if !strings.Contains(content, req.Anchor) || req.Anchor == "" {
			return res, nil
		}
		if !req.Force && payloadPresent(content, req.Anchor, req.Payload, req.Op) {
			res.Found, res.AlreadyPresent, res.Success = true, true, true
			return res, nil
		}
		if req.Op == model.OpInsertAfter {
			out, found = InsertAfter(content, req.Anchor, req.Payload)
		} else {
			out, found = InsertBefore(content, req.Anchor, req.Payload)
		}
	case model.OpReplace, model.OpDelete:
		p, err := requestPattern(req)
		if err != nil {
			return res, err
		}
		payload := req.Payload
		if req.Op == model.OpDelete {
			payload = ""
		}
		out, found = Replace(content, p, payload, req.Occurrence)
	case model.OpAppend:
		found = true
		if !req.Force && payloadPresent(content, "", req.Payload, req.Op) {
			res.Found, res.AlreadyPresent, res.Success = true, true, true
			return res, nil
		}
		out = content
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += req.Payload
	default:
		return res, fmt.Errorf("operation %q is not a content transformation", req.Op)
	}

	if !found {
		return res, nil
	}
	res.Found = true
	res.Success = true
	res.Changed = out != content
	res.Content = out
	return res, nil
}

func requestPattern(req model.PatchRequest) (Pattern, error) {
	if req.Regexp {
		return CompileRegexp(req.Pattern)
	}
	return Literal(req.Pattern), nil
}

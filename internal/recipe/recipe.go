// Package recipe describes the questions and steps of a project template and
// runs them against a project through the patch engine.
package recipe

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/hebillas/model"
)

// Step ops handled by the runner itself rather than the patch engine.
const (
	OpGem      model.Op = "gem"
	OpGemGroup model.Op = "gem_group"
	OpRun      model.Op = "run"
	OpGenerate model.Op = "generate"
	OpSay      model.Op = "say"
)

// Recipe is a parsed template.
type Recipe struct {
	Name string `yaml:"name"`
	// Vars are extra bindings available to every rendered field.
	Vars      map[string]string `yaml:"vars"`
	Questions []Question        `yaml:"questions"`
	Steps     []Step            `yaml:"steps"`
}

// Question is a yes/no prompt whose answer gates later steps.
type Question struct {
	Name    string    `yaml:"name"`
	Prompt  string    `yaml:"prompt"`
	Default bool      `yaml:"default"`
	When    Condition `yaml:"when"`
}

// GemSpec is one gem inside a gem_group step.
type GemSpec struct {
	Name     string    `yaml:"name"`
	Versions []string  `yaml:"versions"`
	Require  *bool     `yaml:"require"`
	When     Condition `yaml:"when"`
}

// Step is a single action, or a group of nested steps when Steps is set.
type Step struct {
	Op   model.Op  `yaml:"op"`
	When Condition `yaml:"when"`

	// Inside is joined onto the paths of nested steps.
	Inside string `yaml:"inside"`
	Steps  []Step `yaml:"steps"`

	Path      string `yaml:"path"`
	Anchor    string `yaml:"anchor"`
	Pattern   string `yaml:"pattern"`
	Regexp    bool   `yaml:"regexp"`
	All       bool   `yaml:"all"`
	Payload   string `yaml:"payload"`
	Source    string `yaml:"source"`
	Overwrite bool   `yaml:"overwrite"`
	Force     bool   `yaml:"force"`
	// Raw disables placeholder rendering of the step's fields.
	Raw bool `yaml:"raw"`

	Name     string    `yaml:"name"`
	Versions []string  `yaml:"versions"`
	Require  *bool     `yaml:"require"`
	Groups   []string  `yaml:"groups"`
	Gems     []GemSpec `yaml:"gems"`

	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Message string   `yaml:"message"`

	// Required turns a missing anchor or pattern into an abort.
	Required bool `yaml:"required"`
	// Optional lets the run continue when the step fails.
	Optional bool `yaml:"optional"`
}

// IsGroup reports whether the step only groups nested steps.
func (s Step) IsGroup() bool {
	return s.Op == "" && (len(s.Steps) > 0 || s.Inside != "")
}

// Load decodes and validates a recipe document.
func Load(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ValidationError lists every problem found in a recipe.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid recipe:\n  " + strings.Join(e.Problems, "\n  ")
}

// Validate checks ops, required fields and condition names.
func (r *Recipe) Validate() error {
	var problems []string
	declared := make(map[string]bool, len(r.Questions))

	for i, q := range r.Questions {
		where := fmt.Sprintf("questions[%d]", i)
		if q.Name == "" {
			problems = append(problems, where+": name is required")
			continue
		}
		if declared[q.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate question %q", where, q.Name))
		}
		if q.Prompt == "" {
			problems = append(problems, where+": prompt is required")
		}
		// A question may only depend on questions asked before it.
		problems = append(problems, checkCondition(where, q.When, declared)...)
		declared[q.Name] = true
	}

	var walk func(prefix string, steps []Step)
	walk = func(prefix string, steps []Step) {
		for i, s := range steps {
			where := fmt.Sprintf("%s[%d]", prefix, i)
			problems = append(problems, checkCondition(where, s.When, declared)...)
			if s.IsGroup() {
				walk(where+".steps", s.Steps)
				continue
			}
			problems = append(problems, checkStep(where, s, declared)...)
		}
	}
	walk("steps", r.Steps)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkCondition(where string, c Condition, declared map[string]bool) []string {
	var problems []string
	for _, term := range c {
		name := strings.TrimPrefix(strings.TrimSpace(term), "!")
		if !declared[name] {
			problems = append(problems, fmt.Sprintf("%s: condition refers to unknown question %q", where, name))
		}
	}
	return problems
}

func checkStep(where string, s Step, declared map[string]bool) []string {
	var problems []string
	need := func(field, value string) {
		if value == "" {
			problems = append(problems, fmt.Sprintf("%s: %s requires %s", where, s.Op, field))
		}
	}

	switch s.Op {
	case model.OpInsertAfter, model.OpInsertBefore:
		need("path", s.Path)
		need("anchor", s.Anchor)
	case model.OpReplace, model.OpDelete:
		need("path", s.Path)
		need("pattern", s.Pattern)
	case model.OpCreate, model.OpRemove:
		need("path", s.Path)
	case model.OpAppend:
		need("path", s.Path)
		need("payload", s.Payload)
	case model.OpCopy:
		need("source", s.Source)
	case OpGem:
		need("name", s.Name)
	case OpGemGroup:
		if len(s.Groups) == 0 {
			problems = append(problems, fmt.Sprintf("%s: gem_group requires groups", where))
		}
		if len(s.Gems) == 0 {
			problems = append(problems, fmt.Sprintf("%s: gem_group requires gems", where))
		}
		for j, g := range s.Gems {
			gw := fmt.Sprintf("%s.gems[%d]", where, j)
			if g.Name == "" {
				problems = append(problems, gw+": name is required")
			}
			problems = append(problems, checkCondition(gw, g.When, declared)...)
		}
	case OpRun:
		need("command", s.Command)
	case OpGenerate:
		if len(s.Args) == 0 {
			problems = append(problems, fmt.Sprintf("%s: generate requires args", where))
		}
	case OpSay:
		need("message", s.Message)
	case "":
		problems = append(problems, where+": op is required")
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown op %q", where, s.Op))
	}
	return problems
}

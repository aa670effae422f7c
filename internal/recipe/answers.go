package recipe

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Answers holds the operator's yes/no answers keyed by question name.
// It is built once before any step runs and is not changed afterwards.
type Answers map[string]bool

// Condition is a list of question names that must all be answered yes.
// A name prefixed with '!' must be answered no.
type Condition []string

// UnmarshalYAML accepts either a single name or a list of names.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = Condition{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*c = names
		return nil
	default:
		return fmt.Errorf("line %d: when must be a name or a list of names", node.Line)
	}
}

// Holds reports whether every term of c is satisfied by a.
// Questions that were never asked count as answered no.
func (c Condition) Holds(a Answers) bool {
	for _, term := range c {
		term = strings.TrimSpace(term)
		if name, negated := strings.CutPrefix(term, "!"); negated {
			if a[name] {
				return false
			}
			continue
		}
		if !a[term] {
			return false
		}
	}
	return true
}

// Asker asks a single yes/no question.
type Asker interface {
	Confirm(question string, defaultYes bool) (bool, error)
}

// Ask puts the recipe's questions to the operator in order. A question whose
// condition does not hold is skipped and recorded as no.
func Ask(r *Recipe, asker Asker) (Answers, error) {
	return AskPreset(r, asker, nil)
}

// AskPreset is Ask with some answers fixed in advance by question name.
// A preset answer replaces asking but is still subject to the question's
// condition, so later conditions see the preset value.
func AskPreset(r *Recipe, asker Asker, preset Answers) (Answers, error) {
	answers := make(Answers, len(r.Questions))
	for _, q := range r.Questions {
		if !q.When.Holds(answers) {
			answers[q.Name] = false
			continue
		}
		if yes, ok := preset[q.Name]; ok {
			answers[q.Name] = yes
			continue
		}
		yes, err := asker.Confirm(q.Prompt, q.Default)
		if err != nil {
			return nil, fmt.Errorf("failed to ask %q: %w", q.Name, err)
		}
		answers[q.Name] = yes
	}
	return answers, nil
}

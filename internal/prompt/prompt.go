// Package prompt asks the operator yes/no questions.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sokinpui/hebillas/internal/ui"
)

const (
	questionPrefix = "Do you want to "
	defaultYesHint = "? [Y/n] "
	defaultNoHint  = "? [y/N] "
)

var (
	positiveAnswers = []string{"y", "Y", "yes", "Yes"}
	negativeAnswers = []string{"n", "N", "no", "No"}
)

// LineAsker reads one answer per line. An answer that does not clearly
// contradict the default keeps it.
type LineAsker struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewLineAsker creates an asker reading from r and writing prompts to w.
func NewLineAsker(r io.Reader, w io.Writer) *LineAsker {
	return &LineAsker{reader: bufio.NewReader(r), out: w}
}

func (a *LineAsker) Confirm(question string, defaultYes bool) (bool, error) {
	hint := defaultNoHint
	if defaultYes {
		hint = defaultYesHint
	}
	fmt.Fprint(a.out, ui.Prompt(questionPrefix+question+hint))

	line, err := a.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		if line == "" {
			// Input is exhausted, keep the default.
			fmt.Fprintln(a.out)
			return defaultYes, nil
		}
	}
	answer := strings.TrimSpace(line)

	if defaultYes {
		return !contains(negativeAnswers, answer), nil
	}
	return contains(positiveAnswers, answer), nil
}

// DefaultsAsker answers every question with its default.
type DefaultsAsker struct{}

func (DefaultsAsker) Confirm(_ string, defaultYes bool) (bool, error) {
	return defaultYes, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

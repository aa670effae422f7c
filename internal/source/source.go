package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/hebillas/internal/ui"
)

// SourceProvider determines and retrieves the recipe content.
type SourceProvider struct {
	stdin         *os.File
	readClipboard func() (string, error)
}

// New creates a new SourceProvider.
func New() *SourceProvider {
	return &SourceProvider{
		stdin:         os.Stdin,
		readClipboard: clipboard.ReadAll,
	}
}

// GetContent reads the recipe from path. With "-" it reads stdin. With an
// empty path it reads stdin if piped and the clipboard otherwise.
func (sp *SourceProvider) GetContent(path string) (string, error) {
	switch path {
	case "":
	case "-":
		return sp.readStdin()
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read recipe: %w", err)
		}
		return string(data), nil
	}

	if sp.IsPiped() {
		return sp.readStdin()
	}

	ui.Header("--- Reading recipe from clipboard ---")
	content, err := sp.readClipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "", nil
	}
	return content, nil
}

// IsPiped reports whether stdin is a pipe or file rather than a terminal.
func (sp *SourceProvider) IsPiped() bool {
	stat, err := sp.stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (sp *SourceProvider) readStdin() (string, error) {
	ui.Header("--- Reading recipe from stdin ---")
	content, err := io.ReadAll(sp.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(content), nil
}

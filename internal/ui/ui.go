package ui

import (
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/hebillas/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
)

// Output is where the helpers below write. It defaults to stderr so that
// stdout stays clean for piping.
var Output io.Writer = os.Stderr

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Output, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Output, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Output, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Output, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Output, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(Output, "  "+format+"\n", a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

// --- Summaries ---

// PrintSummary writes a plain-text report of a run.
func PrintSummary(s model.Summary) {
	Header("\n--- Run Summary ---")

	switch {
	case s.Message == "":
	case len(s.Failed) > 0:
		Warning(s.Message)
	default:
		Success(s.Message)
	}

	empty := len(s.Created)+len(s.Modified)+len(s.Removed)+len(s.Skipped)+len(s.Failed)+len(s.Commands) == 0
	if empty && s.Message == "" {
		Info("Nothing was changed.")
	}

	printList(SuccessColor, "Created %d file(s):", s.Created)
	printList(SuccessColor, "Modified %d file(s):", s.Modified)
	printList(SuccessColor, "Removed %d path(s):", s.Removed)
	printList(InfoColor, "Ran %d command(s):", s.Commands)
	printList(WarningColor, "Skipped %d patch(es):", s.Skipped)
	printList(ErrorColor, "Failed %d step(s):", s.Failed)

	for _, note := range s.Notes {
		WarningColor.Fprintf(Output, "\n%s\n", note)
	}
}

// PrintUndoSummary reports the result of an undo.
func PrintUndoSummary(undone, failed []string) {
	Header("\n--- Undo Summary ---")
	if len(undone) == 0 && len(failed) == 0 {
		Info("No operation to undo.")
		return
	}
	printList(SuccessColor, "Successfully reverted %d file(s):", undone)
	printList(ErrorColor, "Failed to revert %d file(s):", failed)
}

func printList(c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintf(Output, title+"\n", len(items))
	for _, item := range items {
		Path("- %s", item)
	}
}

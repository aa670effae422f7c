package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sokinpui/hebillas/cli"
	"github.com/sokinpui/hebillas/hebillas"
	"github.com/sokinpui/hebillas/internal/tui"
	"github.com/sokinpui/hebillas/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app, err := hebillas.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Questions are asked on the plain terminal before any view starts.
	if err := app.Prepare(); err != nil {
		ui.Error("Error: %v", err)
		return 1
	}

	if cfg.NoAnimation || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(ctx, app, cfg)
	}

	model := tui.New(ctx, app, true)
	p := tea.NewProgram(model)
	model.SetProgram(p)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}
	if model.Err() != nil {
		return 1
	}
	return 0
}

func runPlain(ctx context.Context, app *hebillas.App, cfg *cli.Config) int {
	summary, err := app.Execute(ctx)
	if cfg.Undo {
		if summary.Message == "No operation to undo." {
			ui.PrintUndoSummary(nil, nil)
		} else {
			ui.PrintUndoSummary(summary.Modified, summary.Failed)
		}
	} else {
		ui.PrintSummary(summary)
	}

	if err != nil {
		var detailed *hebillas.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		return 1
	}
	return 0
}

package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Root        string
	Recipe      string
	Templates   string
	AppName     string
	RailsBin    string
	LogLevel    string
	LogFile     string
	Vars        map[string]string
	AssumeYes   bool
	DryRun      bool
	Undo        bool
	NoAnimation bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("hebillas", pflag.ContinueOnError)

	flags.StringVarP(&cfg.Root, "root", "C", "", "Project root to apply the recipe to (default: current directory).")
	flags.StringVarP(&cfg.Recipe, "recipe", "f", "", "Recipe file. Use '-' for stdin. Without it the recipe is read from stdin (pipe) or the clipboard.")
	flags.StringVarP(&cfg.Templates, "templates", "t", "", "Directory copy steps read their sources from (default: 'files' next to the recipe).")
	flags.StringVar(&cfg.AppName, "app-name", "", "Application name bound to {{app_name}} (default: base name of the root).")
	flags.StringVar(&cfg.RailsBin, "rails-bin", "bin/rails", "Executable used by generate steps.")
	flags.StringToStringVar(&cfg.Vars, "set", map[string]string{}, "Extra bindings, e.g. --set ruby=2.3.0.")
	flags.BoolVarP(&cfg.AssumeYes, "yes", "y", false, "Answer every question with its default.")
	flags.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Show what would change without writing files or running commands.")
	flags.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last run.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")
	flags.StringVar(&cfg.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error.")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Write logs to this file instead of stderr.")

	flags.Usage = func() {
		fmt.Println("Usage: hebillas [flags]")
		fmt.Println("\nAsk the recipe's questions and apply its steps to a freshly generated project.")
		fmt.Println("\nExample: hebillas -C myapp -f cookies.yml")
		fmt.Println("\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.DryRun {
		return nil, fmt.Errorf("error: --undo and --dry-run are mutually exclusive")
	}
	if cfg.Undo && cfg.Recipe != "" {
		return nil, fmt.Errorf("error: --undo does not take a recipe")
	}

	return cfg, nil
}

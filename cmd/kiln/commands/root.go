// Package commands implements the CLI commands for the kiln task runner.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
)

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	setJSON func(bool)
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, targets []string, opts app.RunOptions) error
	Watch(ctx context.Context, targets []string, opts app.RunOptions) error
	List(ctx context.Context, prefix string, opts app.RunOptions) ([]domain.TaskHandle, error)
	Plan(ctx context.Context, targets []string, opts app.RunOptions) ([]domain.TaskHandle, error)
	Explain(ctx context.Context, name string, opts app.RunOptions) (*domain.Explanation, error)
	History(ctx context.Context, limit int, opts app.RunOptions) ([]domain.SessionSummary, error)
	Clean(ctx context.Context, opts app.CleanOptions) error
}

// Option configures a CLI.
type Option func(*CLI)

// WithJSONToggle is called before any command runs with the value of --json.
func WithJSONToggle(fn func(enable bool)) Option {
	return func(c *CLI) {
		c.setJSON = fn
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "An incremental task runner for data and rendering pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("file", "f", "", "Path to kiln.yaml or a directory to search from")
	rootCmd.PersistentFlags().Bool("json", false, "Write log lines as JSON")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.setJSON == nil {
			return
		}
		enable, _ := cmd.Flags().GetBool("json")
		c.setJSON(enable)
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newExplainCmd())
	rootCmd.AddCommand(c.newHistoryCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// runOptions reads the flags shared by commands that load the configuration.
func runOptions(cmd *cobra.Command) app.RunOptions {
	file, _ := cmd.Flags().GetString("file")
	opts := app.RunOptions{ConfigPath: file}

	if f := cmd.Flags().Lookup("output-mode"); f != nil {
		opts.OutputMode = f.Value.String()
	}
	if ci, err := cmd.Flags().GetBool("ci"); err == nil && ci {
		opts.OutputMode = "linear"
	}
	return opts
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-mode", "o", "auto", "Output mode: auto, pretty, linear, or quiet")
	cmd.Flags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")
}

func normalize(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = domain.NormalizeTaskName(arg)
	}
	return out
}

// Package commands implements the CLI commands for orca.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/app"
	"go.trai.ch/orca/internal/build"
	"go.trai.ch/orca/internal/core/domain"
)

// CLI represents the command line interface for orca.
type CLI struct {
	app      Application
	settings config.Settings
	rootCmd  *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, path string, opts app.RunOptions) (*domain.RunReport, error)
	Hash(ctx context.Context, path string) error
	Show(ctx context.Context, ref string) error
	List(ctx context.Context) error
	Serve(ctx context.Context, addr string) error
}

// New creates a new CLI instance with the given app. A nil settings uses
// config.DefaultSettings for flag defaults.
func New(a Application, settings *config.Settings) *CLI {
	rootCmd := &cobra.Command{
		Use:           "orca",
		Short:         "Content-addressed pipeline runner",
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

	c := &CLI{
		app:      a,
		settings: config.DefaultSettings(),
		rootCmd:  rootCmd,
	}
	if settings != nil {
		c.settings = *settings
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newHashCmd())
	rootCmd.AddCommand(c.newShowCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newServeCmd())
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

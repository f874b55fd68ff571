// Package cli implements the infolio command line: ad-hoc requests through
// the resilient executor and typed queries against the bundled financial
// data providers.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"infolio/internal/config"
)

// session carries the dependencies opened for one invocation
type session struct {
	app *app
}

func (s *session) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// Execute runs the command line with args and releases everything the
// command opened, whether it failed or not.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) error {
	s := &session{}
	defer s.close()

	cmd := newRootCommand(version, s)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(version string, s *session) *cobra.Command {
	var (
		envFile  string
		logLevel string
		logFile  string
	)

	rootCmd := &cobra.Command{
		Use:   "infolio",
		Short: "Resilient client for financial data APIs",
		Long: `infolio calls HTTP APIs through a retrying executor that classifies
failures, honours Retry-After and refreshes credentials when a request is
rejected with 401.

Configuration is read from the environment and an optional .env file.`,
		Version:      version,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			cfg := config.Load()
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-file") {
				cfg.LogFile = logFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			s.app = a
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "environment file read before the process environment")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
	flags.StringVar(&logFile, "log-file", "", "log file, overrides LOG_FILE (stderr when empty)")

	rootCmd.AddCommand(
		newRequestCommand(s),
		newRatesCommand(s),
		newBarsCommand(s),
	)

	return rootCmd
}

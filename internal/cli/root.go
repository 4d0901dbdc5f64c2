package cli

import (
	"log/slog"
	"os"

	"github.com/me/workgate/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking WORKGATE_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("WORKGATE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the workgate CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "workgate",
		Short: "workgate: constraint-gated background jobs",
		Long:  "workgate submits background jobs that run only while their network, battery and storage constraints hold.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "workgate server URL (or WORKGATE_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newListCmd(),
		newStatusCmd(),
		newCancelCmd(),
		newCompleteCmd(),
		newConstraintsCmd(),
		newWatchCmd(),
	)

	return root
}

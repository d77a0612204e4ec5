// Command assistant is a terminal client for the customer feedback analysis service.
package main

import (
	"fmt"
	"os"

	"github.com/creastat/feedback-assistant/config"
	"github.com/creastat/feedback-assistant/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	docsOnly bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Ask questions about customer feedback",
	Long: `assistant is a chat client for the customer feedback analysis service.

Questions are answered by the service from reviews and uploaded reports; each
answer lists the passages it was based on. Conversations are saved locally and
can be resumed with --session.

Run without arguments to start the interactive chat.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.String("session", "", "session id to resume (default: a new session)")
	pf.BoolVar(&docsOnly, "docs-only", false, "search in uploaded documents only")
	config.BindFlags(pf)

	rootCmd.AddCommand(chatCmd, askCmd, dashboardCmd, uploadCmd, statusCmd, sessionCmd)
}

// setup loads configuration and builds the logger. The chat screen owns the
// terminal, so it only logs when log.file is set.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Log.Level
	if verbose {
		level = zapcore.DebugLevel.String()
	}
	logger, err = logging.New(logging.Options{
		Level:   level,
		JSON:    cfg.Log.JSON,
		File:    cfg.Log.File,
		Discard: isInteractive(cmd),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == chatCmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

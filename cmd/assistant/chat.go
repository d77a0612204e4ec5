package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/creastat/feedback-assistant/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cs, err := startSession(cmd.Context(), cfg, logger, docsOnly)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(cs.ctrl, ""), tea.WithAltScreen())
	_, runErr := p.Run()

	if err := cs.Close(); err != nil {
		logger.Warn("failed to close session store", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("chat exited: %w", runErr)
	}

	fmt.Fprintf(os.Stderr, "Session %s saved. Resume with: assistant --session %s\n", cs.ID(), cs.ID())
	return nil
}

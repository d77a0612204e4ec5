package main

import (
	"context"
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/creastat/feedback-assistant/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or discard saved conversations",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <id>",
	Short: "Discard a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEnd,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionEndCmd)
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.IOTimeout)
	defer cancel()

	snap, err := store.Get(ctx, id)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read session %s", id)).
			WithCause(err)
	}
	if snap == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("session %s not found", id)).
			WithCause(session.ErrNotFound)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s (version %d, updated %s, ~%d tokens)\n\n",
		snap.ID, snap.Version, snap.UpdatedAt.Format("Jan 2, 2006 15:04"), session.TranscriptTokens(snap.Messages))
	for _, m := range snap.Messages {
		if m.Role == session.RoleUser {
			fmt.Fprintf(out, "> %s\n\n", m.Content)
			continue
		}
		fmt.Fprintln(out, renderAnswer(m))
		fmt.Fprintln(out)
	}
	return nil
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.IOTimeout)
	defer cancel()

	h := session.NewHistory(id, store, session.WithLogger(logger.Named("session")))
	if err := h.End(ctx); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to discard session %s", id)).
			WithCause(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s discarded\n", id)
	return nil
}

package main

import (
	"fmt"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a single question and print the answer",
	Long: `Submits one question through the same session as the chat, prints the
answer and the passages it was based on, and exits. The exchange is appended to
the session given by --session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cs, err := startSession(cmd.Context(), cfg, logger, docsOnly)
	if err != nil {
		return err
	}
	defer cs.Close()

	if !cs.ctrl.Submit(question) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("question is empty")
	}
	cs.ctrl.Wait()

	messages := cs.ctrl.Messages()
	answer := messages[len(messages)-1]
	if err := cs.ctrl.LastError(); err != nil {
		logger.Debug("answer replaced by apology", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderAnswer(answer))
	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", cs.ID())
	return nil
}

func renderAnswer(m session.Message) string {
	r := view.NewRenderer(80, "")
	var b strings.Builder
	b.WriteString(r.Render(view.Entry{Role: m.Role, Content: m.Content}))
	if len(m.RetrievedPassages) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, p := range m.RetrievedPassages {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, view.TruncatePassage(p, 200))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

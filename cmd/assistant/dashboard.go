package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/creastat/feedback-assistant/view"
	"github.com/spf13/cobra"
)

var dashboardSort string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show sentiment trend, topic distribution and recent feedback",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardSort, "sort", "date", "recent feedback order: date or sentiment")
}

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func runDashboard(cmd *cobra.Command, args []string) error {
	if dashboardSort != "date" && dashboardSort != "sentiment" {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("unknown sort %q, want date or sentiment", dashboardSort))
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout)
	defer cancel()

	d, err := client.Dashboard(ctx)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("failed to fetch dashboard").
			WithCause(err)
	}

	sortFeedback(d.RecentFeedback, dashboardSort)
	printDashboard(cmd.OutOrStdout(), d)
	return nil
}

var sentimentRank = map[string]int{"negative": 0, "neutral": 1, "positive": 2}

// sortFeedback orders feedback newest first, or by sentiment (negative first) then newest.
func sortFeedback(items []transport.FeedbackItem, by string) {
	sort.SliceStable(items, func(i, j int) bool {
		if by == "sentiment" {
			ri, rj := rank(items[i].Sentiment), rank(items[j].Sentiment)
			if ri != rj {
				return ri < rj
			}
		}
		return items[i].Timestamp > items[j].Timestamp
	})
}

func rank(sentiment string) int {
	if r, ok := sentimentRank[sentiment]; ok {
		return r
	}
	return len(sentimentRank)
}

func printDashboard(w io.Writer, d *transport.Dashboard) {
	trend := make([][]string, 0, len(d.SentimentTrend))
	for _, p := range d.SentimentTrend {
		trend = append(trend, []string{p.Date, strconv.Itoa(p.Positive), strconv.Itoa(p.Negative), strconv.Itoa(p.Neutral)})
	}

	topics := make([][]string, 0, len(d.TopicDistribution))
	for _, t := range d.TopicDistribution {
		share := "-"
		if t.Percentage != nil {
			share = strconv.FormatFloat(*t.Percentage, 'f', 2, 64) + "%"
		}
		topics = append(topics, []string{lipgloss.NewStyle().Foreground(lipgloss.Color(t.Fill)).Render("■") + " " + t.Name, strconv.Itoa(t.Value), share})
	}

	recent := make([][]string, 0, len(d.RecentFeedback))
	for _, f := range d.RecentFeedback {
		recent = append(recent, []string{f.ID, string(f.Source), f.Sentiment, f.Timestamp, view.TruncatePassage(f.Summary, 60)})
	}

	fmt.Fprintln(w, sectionStyle.Render("Sentiment over time"))
	fmt.Fprintln(w, renderTable([]string{"Date", "Positive", "Negative", "Neutral"}, trend))
	fmt.Fprintln(w, sectionStyle.Render("Topic distribution"))
	fmt.Fprintln(w, renderTable([]string{"Topic", "Count", "Share"}, topics))
	fmt.Fprintln(w, sectionStyle.Render("Recent feedback"))
	fmt.Fprintln(w, renderTable([]string{"ID", "Source", "Sentiment", "Date", "Summary"}, recent))
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

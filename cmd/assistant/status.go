package main

import (
	"context"
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the feedback service is reachable",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout)
	defer cancel()

	var (
		health    *transport.Health
		dashboard *transport.Dashboard
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		h, err := client.Health(egCtx)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		health = h
		return nil
	})
	eg.Go(func() error {
		d, err := client.Dashboard(egCtx)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		dashboard = d
		return nil
	})
	if err := eg.Wait(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("feedback service at %s is not ready", client.BaseURL())).
			WithCause(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "service:  %s (%s: %s)\n", client.BaseURL(), health.Status, health.Message)
	fmt.Fprintf(out, "feedback: %d days, %d topics, %d recent items\n",
		len(dashboard.SentimentTrend), len(dashboard.TopicDistribution), len(dashboard.RecentFeedback))
	fmt.Fprintf(out, "sessions: %s driver\n", cfg.Session.Driver)
	return nil
}

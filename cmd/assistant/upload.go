package main

import (
	"context"
	"fmt"
	"os"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a feedback report for analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("cannot open %s", path)).
			WithCause(err)
	}
	defer f.Close()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout)
	defer cancel()

	logger.Info("uploading document", zap.String("path", path))
	res, err := client.Upload(ctx, path, f)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("upload failed").
			WithCause(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

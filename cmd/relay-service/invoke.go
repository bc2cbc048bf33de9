package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relay/internal/relay"
	"relay/pkg/bootstrap"
	"relay/pkg/models"
)

func invokeCmd() *cobra.Command {
	var batchFile string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run one pipeline invocation over a batch file and print the retry outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			req, err := readBatch(cmd.InOrStdin(), batchFile)
			if err != nil {
				return err
			}

			base := bootstrap.NewBase(cfg, log)
			defer func() {
				if err := base.Shutdown(context.Background(), nil); err != nil {
					log.ErrorwCtx(ctx, "Shutdown failed", "error", err)
				}
			}()
			if err := base.InitStream(ctx); err != nil {
				return err
			}

			svc, err := relay.NewService(cfg.Pipeline, cfg.Stream.Name, base.Writer, log)
			if err != nil {
				return err
			}

			outcome := svc.HandleBatch(ctx, relay.TriggerCLI, req.Messages)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}

	cmd.Flags().StringVar(&batchFile, "batch", "-", "Path to a batch request JSON file, or - for stdin")
	return cmd
}

func readBatch(stdin io.Reader, path string) (models.BatchRequest, error) {
	var req models.BatchRequest

	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to parse batch request: %w", err)
	}
	if err := relay.ValidateBatch(req); err != nil {
		return req, err
	}
	return req, nil
}

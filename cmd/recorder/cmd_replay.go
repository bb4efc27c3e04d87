package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recorder/internal/browser"
	"recorder/internal/calllog"
	"recorder/internal/codegen"
	"recorder/internal/executor"
)

var replayCmd = &cobra.Command{
	Use:   "replay [recording.jsonl]",
	Short: "Replay a JSONL recording against a fresh page",
	Long: `Reads a recording written by the jsonl generator and performs every action
again, stopping at the first failure. Assertions are retried until the
command deadline.

Example:
  recorder record https://example.com -l jsonl -o login.jsonl
  recorder replay login.jsonl --timeout 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	records, err := codegen.ReadJSONL(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no actions", args[0])
	}

	store, err := openAudit()
	if err != nil {
		return err
	}
	sessionID := uuid.NewString()
	var logOpts []calllog.Option
	if store != nil {
		defer store.Close()
		logOpts = append(logOpts, calllog.OnTerminal(func(e calllog.Entry) {
			if err := store.Record(context.Background(), e); err != nil {
				logger.Warn("Failed to audit entry", zap.String("id", e.ID), zap.Error(err))
			}
		}))
	}
	log := calllog.New(sessionID, logOpts...)

	mgr := browser.NewManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()
	if len(mgr.Pages()) == 0 {
		if _, err := mgr.NewPage(ctx, ""); err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
	}

	exec := executor.New(mgr, log, executor.WithTimeout(commandTimeout()))
	logger.Info("Replaying", zap.String("file", args[0]), zap.Int("actions", len(records)), zap.String("session", sessionID))

	n, err := exec.Replay(ctx, records)
	out := cmd.OutOrStdout()
	for _, e := range log.Snapshot() {
		line := fmt.Sprintf("%-7s %s", e.Status, e.Title)
		if e.Params.Selector != "" {
			line += " " + e.Params.Selector
		} else if e.Params.URL != "" {
			line += " " + e.Params.URL
		}
		if e.Error != "" {
			line += "  " + truncate(e.Error, 80)
		}
		fmt.Fprintln(out, line)
	}
	if err != nil {
		return fmt.Errorf("replay stopped after %d of %d actions: %w", n, len(records), err)
	}
	fmt.Fprintf(out, "Replayed %d actions\n", n)
	return nil
}

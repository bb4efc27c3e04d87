package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"recorder/internal/calllog"
	"recorder/internal/codegen"
)

var (
	calllogSession string
	calllogStatus  string
	calllogLimit   int
	calllogJSON    bool
)

var calllogCmd = &cobra.Command{
	Use:   "calllog",
	Short: "List audited commands from the call-log store",
	Long: `Prints commands recorded in audit.database_path, newest first. Only
commands issued from the control surface or during replay are audited.`,
	Args: cobra.NoArgs,
	RunE: runCallLog,
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the available generators",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	calllogCmd.Flags().StringVar(&calllogSession, "session", "", "Only entries of this session id")
	calllogCmd.Flags().StringVar(&calllogStatus, "status", "", "Only entries with this status (done, error)")
	calllogCmd.Flags().IntVarP(&calllogLimit, "limit", "n", 50, "Maximum number of entries")
	calllogCmd.Flags().BoolVar(&calllogJSON, "json", false, "Print entries as JSON lines")
}

func runCallLog(cmd *cobra.Command, args []string) error {
	store, err := calllog.OpenStore(cfg.Audit.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := store.List(ctx, calllog.Query{
		SessionID: calllogSession,
		Status:    calllog.Status(calllogStatus),
		Limit:     calllogLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if calllogJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tTITLE\tTARGET\tDURATION\tDETAIL")
	for _, e := range entries {
		target := e.Params.Selector
		if target == "" {
			target = e.Params.URL
		}
		detail := e.Error
		if detail == "" && len(e.Messages) > 0 {
			detail = e.Messages[len(e.Messages)-1]
		}
		var d string
		if e.Duration != nil {
			d = e.Duration.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Status, e.Title, target, d, truncate(detail, 60))
	}
	return w.Flush()
}

func runLanguages(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGROUP\tLABEL")
	for _, g := range codegen.Builtin() {
		mark := ""
		if g.ID() == cfg.Recorder.Language {
			mark = " (primary)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s%s\n", g.ID(), g.Group(), g.Label(), mark)
	}
	return w.Flush()
}

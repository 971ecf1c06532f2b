package main

import (
	"fmt"
	"io"
	"strings"

	"mediachat/internal/dispatch"
	"mediachat/internal/metadata"

	"github.com/spf13/cobra"
)

// askCmd sends a single message
var askCmd = &cobra.Command{
	Use:   "ask [message...]",
	Short: "Send one message and print the reply",
	Long: `Sends a single message to the assistant service through the same
session logic the chat uses. Failures are printed as the localized
assistant message and the command exits non-zero.

Example:
  mediachat ask "¿Hay audios en español?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// suggestionsCmd lists the suggested queries
var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List the suggested queries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, q := range dispatch.SuggestedQueries() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func runAsk(cmd *cobra.Command, args []string) error {
	session := newSession(cfg)
	ev, ok := session.Submit(cmd.Context(), strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("nothing to send: message is empty")
	}
	return printEvent(cmd.OutOrStdout(), ev, session.View().Stats)
}

// printEvent writes the resolved message and, when present, the stats line.
func printEvent(w io.Writer, ev dispatch.Event, stats *metadata.DbStats) error {
	fmt.Fprintln(w, ev.Message.Content)
	if ev.StatsUpdated && stats != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, formatStats(*stats))
	}
	if ev.Outcome == dispatch.OutcomeFailure {
		return fmt.Errorf("request failed: %s", ev.Category)
	}
	return nil
}

func formatStats(s metadata.DbStats) string {
	parts := []string{fmt.Sprintf("records=%d", s.TotalRecords)}
	if len(s.Types) > 0 {
		parts = append(parts, "types="+strings.Join(s.Types, ","))
	}
	if s.RelatedRecords != nil {
		parts = append(parts, fmt.Sprintf("related=%d", *s.RelatedRecords))
	}
	if s.LatestUpdate != nil {
		parts = append(parts, "latest_update="+s.LatestUpdate.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return strings.Join(parts, " ")
}

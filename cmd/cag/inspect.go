package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielpatrickdp/cag-verifier/internal/audit"
	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/revise"
	"github.com/spf13/cobra"
)

// #region inspect

func newInspectCmd(flags *rootFlags) *cobra.Command {
	var (
		dbPath  string
		last    int
		id      string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show recorded verifications from the audit database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				cfg, _, err := flags.load()
				if err != nil {
					return err
				}
				dbPath = cfg.Storage.DBPath
			}
			store, err := audit.Open(dbPath, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if id != "" {
				e, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(out, e)
				}
				printDetail(out, e)
				return nil
			}

			entries, err := store.Recent(cmd.Context(), last)
			if err != nil {
				return err
			}
			counts, err := store.CountByDecision(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, map[string]any{"entries": entries, "counts": counts})
			}
			printList(out, entries, counts)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to audit database (defaults to config)")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent verifications")
	cmd.Flags().StringVar(&id, "id", "", "show a single verification in detail")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect

// #region list-mode

func printList(w io.Writer, entries []audit.Entry, counts map[string]int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no verifications recorded")
		return
	}
	fmt.Fprintf(w, "%-12s  %-9s  %6s  %6s  %5s  %8s  %s\n", "ID", "Decision", "Conf", "Issues", "Human", "Ms", "Time")
	fmt.Fprintf(w, "%-12s+-%-9s+-%6s+-%6s+-%5s+-%8s+-%s\n",
		"------------", "---------", "------", "------", "-----", "--------", "--------------------")
	for _, e := range entries {
		human := ""
		if e.RequiresHuman {
			human = "yes"
		}
		fmt.Fprintf(w, "%-12s  %-9s  %6.2f  %6d  %5s  %8.1f  %s\n",
			shortID(e.ID), e.Decision, e.Confidence, len(e.Issues), human, e.ProcessingMs,
			e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}

	names := make([]string, 0, len(counts))
	for d := range counts {
		names = append(names, d)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, d := range names {
		parts[i] = fmt.Sprintf("%s=%d", d, counts[d])
	}
	fmt.Fprintf(w, "\nTotals: %s\n", strings.Join(parts, " "))
}

// #endregion list-mode

// #region detail-mode

func printDetail(w io.Writer, e audit.Entry) {
	fmt.Fprintf(w, "ID:         %s\n", e.ID)
	fmt.Fprintf(w, "Request:    %s\n", e.RequestID)
	fmt.Fprintf(w, "Query hash: %s\n", e.QueryHash)
	fmt.Fprintf(w, "Created:    %s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "Decision:   %s (confidence %.2f, human review %t)\n", e.Decision, e.Confidence, e.RequiresHuman)
	fmt.Fprintf(w, "Stages:     %d in %.1f ms\n", e.Stages, e.ProcessingMs)
	if e.Reason != "" {
		fmt.Fprintf(w, "Reason:     %s\n", e.Reason)
	}

	fmt.Fprintf(w, "\nIssues (%d):\n", len(e.Issues))
	for round := 1; round <= revise.RevisionRound; round++ {
		issues := check.InRound(e.Issues, round)
		if len(issues) == 0 {
			continue
		}
		fmt.Fprintf(w, "  round %d:\n", round)
		for _, is := range issues {
			fmt.Fprintf(w, "    %-8s %-20s %s\n", is.Severity, is.Category, is.Description)
		}
	}
	fmt.Fprintf(w, "\nRevisions (%d):\n", len(e.Revisions))
	for _, r := range e.Revisions {
		fmt.Fprintf(w, "  %s: %.2f -> %.2f improved=%t\n", r.Summary, r.ConfidenceBefore, r.ConfidenceAfter, r.Improved)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
}

// #endregion detail-mode

// #region helpers

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers

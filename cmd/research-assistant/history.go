// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent federated searches",
	Long: `History reads the local search log. Filters narrow the list by query
text, database, failures, and age. With --summary it prints aggregate counts
and per-database failure totals instead.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	contains, _ := cmd.Flags().GetString("contains")
	database, _ := cmd.Flags().GetString("database")
	failed, _ := cmd.Flags().GetBool("failed")
	since, _ := cmd.Flags().GetDuration("since")
	summary, _ := cmd.Flags().GetBool("summary")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("search history is disabled (history.enabled)")
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var out any
	if summary {
		sum, err := store.Summarize(cmd.Context())
		if err != nil {
			return err
		}
		if format == "table" {
			writeSummaryTable(os.Stdout, sum)
			return nil
		}
		out = sum
	} else {
		f := history.Filter{Contains: contains, Database: database, FailedOnly: failed, Limit: limit}
		if since > 0 {
			f.Since = time.Now().Add(-since)
		}
		records, err := store.Query(cmd.Context(), f)
		if err != nil {
			return err
		}
		if format == "table" {
			writeHistoryTable(os.Stdout, records)
			return nil
		}
		out = records
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func writeHistoryTable(w io.Writer, records []types.SearchRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-50s  %7s  %7s  %s\n", "When", "Query", "Results", "Took", "Failed")
	for _, r := range records {
		q := r.Query
		if runes := []rune(q); len(runes) > 50 {
			q = string(runes[:47]) + "..."
		}
		fmt.Fprintf(w, "%-19s  %-50s  %7d  %5dms  %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), q, r.TotalResults, r.ResponseTimeMS,
			strings.Join(r.FailedDatabases, ","))
	}
}

func writeSummaryTable(w io.Writer, sum history.Summary) {
	fmt.Fprintf(w, "Searches:          %d\n", sum.Searches)
	fmt.Fprintf(w, "Avg response time: %.0fms\n", sum.AvgResponseTimeMS)
	fmt.Fprintf(w, "Avg results:       %.1f\n", sum.AvgResults)
	if len(sum.Failures) == 0 {
		return
	}
	names := make([]string, 0, len(sum.Failures))
	for name := range sum.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Failures:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %d\n", name, sum.Failures[name])
	}
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of searches")
	historyCmd.Flags().String("contains", "", "only searches whose query contains this text")
	historyCmd.Flags().String("database", "", "only searches that queried this database")
	historyCmd.Flags().Bool("failed", false, "only searches in which a database failed")
	historyCmd.Flags().Duration("since", 0, "only searches newer than this age (e.g. 24h)")
	historyCmd.Flags().Bool("summary", false, "print aggregate statistics")
	historyCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(historyCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/federated"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one federated search across the academic databases",
	Long: `Search queries every selected database concurrently, removes duplicates,
and ranks the pool by lexical relevance, semantic similarity, citations, and
recency. Providers that fail or time out are listed but never fail the search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	databases, _ := cmd.Flags().GetStringSlice("databases")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	access, _ := cmd.Flags().GetString("access")
	yearMin, _ := cmd.Flags().GetInt("from")
	yearMax, _ := cmd.Flags().GetInt("to")
	noExpand, _ := cmd.Flags().GetBool("no-expand")
	noSemantic, _ := cmd.Flags().GetBool("no-semantic")
	format, _ := cmd.Flags().GetString("format")

	switch format {
	case "table", "json", "yaml", "csl":
	default:
		return fmt.Errorf("unknown format %q: want table, json, yaml, or csl", format)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.orchestrator.Search(cmd.Context(), types.Query{
		Text:         strings.Join(args, " "),
		Databases:    databases,
		MaxResults:   maxResults,
		AccessFilter: types.AccessFilter(access),
		YearMin:      yearMin,
		YearMax:      yearMax,
		Expand:       !noExpand,
		Semantic:     !noSemantic,
	})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return federated.FormatJSON(resp, os.Stdout)
	case "yaml":
		return federated.FormatYAML(resp, os.Stdout)
	case "csl":
		return federated.FormatCSL(resp, os.Stdout)
	default:
		federated.FormatTable(resp, os.Stdout)
		return nil
	}
}

func init() {
	searchCmd.Flags().StringSlice("databases", nil, "databases to query (default: configured defaults)")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default from config)")
	searchCmd.Flags().String("access", "", "access filter: open or restricted")
	searchCmd.Flags().Int("from", 0, "earliest publication year")
	searchCmd.Flags().Int("to", 0, "latest publication year")
	searchCmd.Flags().Bool("no-expand", false, "disable query expansion")
	searchCmd.Flags().Bool("no-semantic", false, "disable semantic scoring")
	searchCmd.Flags().String("format", "table", "output format: table, json, yaml, or csl (CSL-YAML bibliography)")

	rootCmd.AddCommand(searchCmd)
}

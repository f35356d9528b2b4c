// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var expandCmd = &cobra.Command{
	Use:   "expand [query]",
	Short: "Show the synonyms, related terms, and variants of a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint, _ := cmd.Flags().GetString("context")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		exp := a.expander.Expand(cmd.Context(), strings.Join(args, " "), hint)
		if exp.Degraded {
			fmt.Fprintln(os.Stderr, "warning: generator unavailable, thesaurus results only")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	},
}

func init() {
	expandCmd.Flags().String("context", "", "optional context about the search")
	rootCmd.AddCommand(expandCmd)
}

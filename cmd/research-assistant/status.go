// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every registered database and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Fprintf(os.Stdout, "%-18s  %-9s  %8s  %s\n", "Database", "Available", "Latency", "Error")
		for _, s := range a.orchestrator.DatabaseStatus(cmd.Context()) {
			avail := "no"
			if s.Available {
				avail = "yes"
			}
			fmt.Fprintf(os.Stdout, "%-18s  %-9s  %6dms  %s\n", s.Name, avail, s.ResponseTimeMS, s.ErrorMessage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/stream"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Stream an answer grounded on federated search results",
	Long: `Ask plans search queries from the question, searches the academic
databases, reranks the merged results, and streams an LLM answer that cites
the documents it used as [n].

Progress and the document list go to stderr; the answer goes to stdout.
With --events the raw event stream is written to stdout as SSE frames.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	databases, _ := cmd.Flags().GetStringSlice("databases")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	topK, _ := cmd.Flags().GetInt("top-k")
	access, _ := cmd.Flags().GetString("access")
	raw, _ := cmd.Flags().GetBool("events")
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	messages := []types.ChatMessage{{Role: types.RoleUser, Content: strings.Join(args, " ")}}
	events, err := a.assembler.Stream(ctx, messages, stream.Options{
		Databases:          databases,
		AccessFilter:       types.AccessFilter(access),
		Semantic:           true,
		CandidatesPerQuery: maxResults,
		TopK:               topK,
	})
	if err != nil {
		return err
	}

	if raw {
		return stream.Copy(os.Stdout, events, stream.NativeEncoder{})
	}

	var failure error
	for ev := range events {
		switch ev.Type {
		case types.EventStatus:
			if !quiet {
				fmt.Fprintln(os.Stderr, ev.Message)
			}
		case types.EventDocuments:
			if !quiet {
				for i, d := range ev.Documents {
					fmt.Fprintf(os.Stderr, "[%d] %s (%s)\n", i+1, d.Title, d.SourceProvider)
				}
				fmt.Fprintln(os.Stderr)
			}
		case types.EventChunk:
			fmt.Fprint(os.Stdout, ev.Chunk)
		case types.EventComplete:
			fmt.Fprintln(os.Stdout)
			if !quiet {
				fmt.Fprintf(os.Stderr, "\n%d documents, %dms\n", ev.Completion.TotalDocuments, ev.Completion.ProcessingTimeMS)
			}
		case types.EventError:
			failure = errors.New(ev.Message)
		}
	}
	if failure != nil {
		return failure
	}
	return ctx.Err()
}

func init() {
	askCmd.Flags().StringSlice("databases", nil, "databases to query (default: configured defaults)")
	askCmd.Flags().Int("max-results", 0, "results per planned query (default from config)")
	askCmd.Flags().Int("top-k", 0, "documents the answer is grounded on (default from config)")
	askCmd.Flags().String("access", "", "access filter: open or restricted")
	askCmd.Flags().Bool("events", false, "write the raw event stream as SSE frames")
	askCmd.Flags().Bool("quiet", false, "print only the answer")

	rootCmd.AddCommand(askCmd)
}

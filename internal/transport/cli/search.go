package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

type searchOptions struct {
	topK    int
	filters map[string]string
	json    bool
}

func newSearchCommand(root *rootOptions, factory Factory) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [question]",
		Short: "Run an agentic retrieval for a question",
		Long: `Decomposes the question into subqueries, runs them against the search index
and prints the fused, de-duplicated documents and extracted answers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := root.parseHistory()
			if err != nil {
				return err
			}

			r, release, err := factory(cmd.Context(), root.env)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer release()

			res, err := r.SearchText(cmd.Context(), strings.Join(args, " "), history, opts.filters, opts.topK)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if opts.json {
				return printJSON(cmd, res)
			}
			printSynthesized(cmd, &res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", query.DefaultTopK, "number of documents to return")
	cmd.Flags().StringToStringVarP(&opts.filters, "filter", "f", nil, "metadata filter, e.g. -f pozo=LACh-1030")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the full result as JSON")
	return cmd
}

func printSynthesized(cmd *cobra.Command, res *result.Synthesized) {
	w := cmd.OutOrStdout()
	m := res.Metadata
	fmt.Fprintf(w, "Mode: %s  subqueries: %d/%d  took: %s\n",
		m.Mode, m.SubqueriesSucceeded, m.SubqueriesExecuted, m.Duration.Round(time.Millisecond))

	for _, s := range res.Grounding.SubqueriesExecuted {
		if s.Error != "" {
			fmt.Fprintf(w, "  - %s [failed: %s]\n", s.Query, s.Error)
			continue
		}
		fmt.Fprintf(w, "  - %s (%d docs)\n", s.Query, s.DocumentsFound)
	}

	if len(res.Answers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Answers:")
		for _, a := range res.Answers {
			fmt.Fprintf(w, "  * %s\n", a.Text)
		}
	}

	fmt.Fprintln(w)
	if len(res.Documents) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	fmt.Fprintf(w, "Documents (%d of %d):\n", res.Grounding.DocumentsReturned, res.Grounding.TotalDocumentsFound)
	for i := range res.Documents {
		d := &res.Documents[i]
		title := d.Headers.H1
		if title == "" {
			title = d.ID
		}
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, title, d.CombinedScore)
		if len(d.Captions) > 0 {
			fmt.Fprintf(w, "      %s\n", d.Captions[0])
		}
	}
}

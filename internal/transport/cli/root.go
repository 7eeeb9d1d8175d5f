// Package cli implements the retrieverctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/usecase/retrieval"
	"github.com/kailas-cloud/retriever/internal/version"
)

// Retriever is what the commands need from the retrieval service.
type Retriever interface {
	SearchText(
		ctx context.Context, question string, history []query.Message, filters map[string]string, topK int,
	) (result.Synthesized, error)
	Plan(ctx context.Context, question string, history []query.Message) retrieval.Plan
}

// Factory builds a Retriever for the selected environment. The returned func releases it.
type Factory func(ctx context.Context, env string) (Retriever, func(), error)

type rootOptions struct {
	env     string
	history string
}

// NewRootCommand creates the retrieverctl command tree.
func NewRootCommand(factory Factory) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "retrieverctl",
		Short:         "Query the agentic retrieval pipeline from the command line",
		Version:       fmt.Sprintf("%s (%s)", version.Version, version.Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", "local", "configuration environment (config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.history, "history", "",
		`conversation history as JSON, e.g. '[{"role":"user","content":"..."}]'`)

	root.AddCommand(newSearchCommand(opts, factory))
	root.AddCommand(newPlanCommand(opts, factory))
	return root
}

func (o *rootOptions) parseHistory() ([]query.Message, error) {
	if o.history == "" {
		return nil, nil
	}
	var history []query.Message
	if err := json.Unmarshal([]byte(o.history), &history); err != nil {
		return nil, fmt.Errorf("invalid --history: %w", err)
	}
	return history, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

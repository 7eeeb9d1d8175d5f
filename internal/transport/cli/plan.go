package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type planItem struct {
	Query   string            `json:"query"`
	Intent  string            `json:"intent"`
	Filters map[string]string `json:"filters"`
}

type planOutput struct {
	Outcome    string     `json:"outcome"`
	Subqueries []planItem `json:"subqueries"`
}

func newPlanCommand(root *rootOptions, factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [question]",
		Short: "Show how a question would be decomposed, without searching",
		Args:  cobra.MinimumNArgs(1),
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

			plan := r.Plan(cmd.Context(), strings.Join(args, " "), history)
			out := planOutput{Outcome: string(plan.Outcome), Subqueries: make([]planItem, len(plan.Subqueries))}
			for i, sq := range plan.Subqueries {
				out.Subqueries[i] = planItem{Query: sq.Text(), Intent: sq.Intent(), Filters: sq.Filters()}
			}
			return printJSON(cmd, out)
		},
	}
}

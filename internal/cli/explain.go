package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crawlplan/internal/planner"
	"github.com/roach88/crawlplan/internal/storesql"
)

// ExplainResult is the output of the explain command.
type ExplainResult struct {
	Type     string   `json:"type"`
	Strategy string   `json:"strategy"`
	Chain    string   `json:"chain"`
	Plan     []string `json:"plan"`
	SQL      string   `json:"sql,omitempty"`
	Params   []any    `json:"params,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "explain <type> <request.yaml>",
		Short: "Show the plan for a list request",
		Long: `Compile a list request into a plan without running it.

Prints the plan operations, the strategy the chain started from, and the
resolved snippet chain. With --sql, also prints the SQLite query the store
would run.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], args[1], showSQL, cmd)
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "also print the compiled SQL")

	return cmd
}

func runExplain(opts *RootOptions, typeName, requestPath string, showSQL bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, formatter.GetErrWriter())

	cat, err := LoadCatalog(opts.Catalog)
	if err != nil {
		return outputError(formatter, err)
	}
	t, err := cat.Lookup(typeName)
	if err != nil {
		return outputError(formatter, err)
	}
	req, err := LoadRequest(requestPath)
	if err != nil {
		return outputError(formatter, err)
	}

	ex, err := planner.Explain(t.Registry, req, t.PlannerOptions(logger)...)
	if err != nil {
		return outputError(formatter, err)
	}

	result := ExplainResult{
		Type:     t.Name,
		Strategy: string(ex.Strategy),
		Chain:    ex.Chain,
		Plan:     ex.Plan.Lines(),
	}
	if showSQL {
		q, err := storesql.Compile(ex.Plan, t.Registry)
		if err != nil {
			return outputError(formatter, err)
		}
		result.SQL = q.SQL
		result.Params = q.Params
	}

	return formatter.Success(result)
}

func (r ExplainResult) Text() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.Plan, "\n"))
	fmt.Fprintf(&b, "\n\nstrategy: %s\nchain: %s", r.Strategy, r.Chain)
	if r.SQL != "" {
		fmt.Fprintf(&b, "\n\nsql: %s\nparams: %v", r.SQL, r.Params)
	}
	return b.String()
}

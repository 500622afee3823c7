package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/schema"
)

// TypeSummary describes one catalog record type.
type TypeSummary struct {
	Name      string   `json:"name"`
	Table     string   `json:"table"`
	LabelPath string   `json:"label_path,omitempty"`
	Indexes   []string `json:"indexes"`

	// Unindexed lists the filterable fields no index starts from.
	// Constraints on them always run as filters.
	Unindexed []string `json:"unindexed,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List record types and their indexes",
		Long: `Compile the catalog and list every record type with its table and
indexes. Use --catalog to check a catalog file before deploying it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := LoadCatalog(opts.Catalog)
	if err != nil {
		return outputError(formatter, err)
	}

	summaries := make(CatalogSummary, 0, len(cat.Types()))
	for _, t := range cat.Types() {
		s := TypeSummary{Name: t.Name, Table: t.Table, LabelPath: t.LabelPath}
		for _, idx := range t.Registry.Indexes() {
			s.Indexes = append(s.Indexes, idx.String())
		}
		s.Unindexed = unindexedPaths(t.Registry)
		summaries = append(summaries, s)
	}
	return formatter.Success(summaries)
}

// unindexedPaths walks the record type and returns the scalar and repeated
// fields that have no index.
func unindexedPaths(reg *index.Registry) []string {
	var out []string
	reg.Descriptor().Walk(func(n *schema.PathNode) bool {
		if !n.Repeated && !n.IsLeaf() {
			return true
		}
		if n.Repeated || n.Kind != schema.KindMessage {
			if reg.BestIndex(n.FullName) == nil {
				out = append(out, n.FullName)
			}
		}
		return false
	})
	return out
}

// CatalogSummary is the output of the catalog command.
type CatalogSummary []TypeSummary

func (c CatalogSummary) Text() string {
	var b strings.Builder
	for i, s := range c {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (table %s)\n", s.Name, s.Table)
		if s.LabelPath != "" {
			fmt.Fprintf(&b, "  labels: %s\n", s.LabelPath)
		}
		for _, idx := range s.Indexes {
			fmt.Fprintf(&b, "  %s\n", idx)
		}
		if len(s.Unindexed) > 0 {
			fmt.Fprintf(&b, "  unindexed: %s\n", strings.Join(s.Unindexed, ", "))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

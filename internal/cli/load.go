package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LoadResult is the output of the load command.
type LoadResult struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "load <type> <records.json>",
		Short: "Write records into the store",
		Long: `Write a JSON array of records into the store in one transaction.

Records are validated against the type's fields. Records without an id get
a generated UUIDv7; existing ids are replaced.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, dbPath, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "crawlplan.db", "SQLite database path")

	return cmd
}

func runLoad(opts *RootOptions, dbPath, typeName, recordsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	records, err := LoadRecords(recordsPath)
	if err != nil {
		return outputError(formatter, err)
	}

	s, err := openStore(opts, dbPath, formatter)
	if err != nil {
		return outputError(formatter, err)
	}
	defer s.Close()

	ids, err := s.PutAll(cmd.Context(), typeName, records)
	if err != nil {
		return outputError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d record(s) into %s", len(ids), dbPath)

	return formatter.Success(LoadResult{Type: typeName, IDs: ids})
}

func (r LoadResult) Text() string {
	return fmt.Sprintf("✓ Loaded %d %s record(s)", len(r.IDs), r.Type)
}

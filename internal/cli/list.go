package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/store"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "list <type> <request.yaml>",
		Short: "Run a list request against the store",
		Long: `Plan a list request and run it against the store.

Records are printed one per line as canonical JSON in result order.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, dbPath, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "crawlplan.db", "SQLite database path")

	return cmd
}

func runList(opts *RootOptions, dbPath, typeName, requestPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	req, err := LoadRequest(requestPath)
	if err != nil {
		return outputError(formatter, err)
	}

	s, err := openStore(opts, dbPath, formatter)
	if err != nil {
		return outputError(formatter, err)
	}
	defer s.Close()

	records, err := s.List(cmd.Context(), typeName, req)
	if err != nil {
		return outputError(formatter, err)
	}
	return formatter.Success(RecordList(records))
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "get <type> <id>",
		Short:         "Fetch one record by id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, dbPath, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "crawlplan.db", "SQLite database path")

	return cmd
}

func runGet(opts *RootOptions, dbPath, typeName, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	s, err := openStore(opts, dbPath, formatter)
	if err != nil {
		return outputError(formatter, err)
	}
	defer s.Close()

	record, ok, err := s.Get(cmd.Context(), typeName, id)
	if err != nil {
		return outputError(formatter, err)
	}
	if !ok {
		return outputError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", typeName, id)})
	}
	return formatter.Success(RecordList{record})
}

// openStore opens the store at dbPath over the selected catalog.
func openStore(opts *RootOptions, dbPath string, formatter *OutputFormatter) (*store.Store, error) {
	cat, err := LoadCatalog(opts.Catalog)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts, formatter.GetErrWriter())
	s, err := store.Open(dbPath, cat, store.WithLogger(logger))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	formatter.VerboseLog("Opened store %s", dbPath)
	return s, nil
}

// RecordList is the output of the list and get commands.
type RecordList []ir.IRObject

// Text prints one canonical JSON record per line.
func (l RecordList) Text() string {
	if len(l) == 0 {
		return "(no records)"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		b, err := ir.MarshalCanonical(r)
		if err != nil {
			lines[i] = fmt.Sprintf("<%v>", err)
			continue
		}
		lines[i] = string(b)
	}
	return strings.Join(lines, "\n")
}

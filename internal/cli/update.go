package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		mask   []string
	)

	cmd := &cobra.Command{
		Use:   "update <type> <id> <patch.json>",
		Short: "Apply masked fields of a patch to one record",
		Long: `Apply the fields of patch.json selected by --mask to the stored record.

A mask path suffixed with "+" appends the patch elements to a repeated field,
"-" removes the matching elements. Other paths replace the field, or clear it
when the patch lacks it.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, dbPath, mask, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "crawlplan.db", "SQLite database path")
	cmd.Flags().StringSliceVar(&mask, "mask", nil, "field paths to update (required)")
	_ = cmd.MarkFlagRequired("mask")

	return cmd
}

func runUpdate(opts *RootOptions, dbPath string, mask []string, typeName, id, patchPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	patch, err := LoadPatch(patchPath)
	if err != nil {
		return outputError(formatter, err)
	}

	s, err := openStore(opts, dbPath, formatter)
	if err != nil {
		return outputError(formatter, err)
	}
	defer s.Close()

	record, ok, err := s.Update(cmd.Context(), typeName, id, mask, patch)
	if err != nil {
		return outputError(formatter, err)
	}
	if !ok {
		return outputError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", typeName, id)})
	}
	formatter.VerboseLog("Updated %s %s", typeName, id)
	return formatter.Success(RecordList{record})
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trovegraph/trove/internal/graph"
)

// UndoOptions holds flags for the undo command.
type UndoOptions struct {
	*RootOptions
	SnapshotPath string
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UndoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Reverse a merge from its snapshot",
		Long: `Reverse a previous merge using the snapshot it produced.

The deleted record is recreated under its original id, the surviving
record's fields are restored, dependent rows are pointed back, and the
original link set is reinstated. Fails if the merge was already undone
or the surviving record has since been deleted.

Example:
  trove undo --snapshot merge-34-12.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SnapshotPath, "snapshot", "", "snapshot file produced by merge (required)")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func runUndo(opts *UndoOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	snapshot, err := graph.LoadSnapshot(opts.SnapshotPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	engine, st, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := engine.UndoMerge(context.Background(), snapshot)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "restored record %d, reverted record %d\n", result.SourceRecord.ID, result.TargetRecord.ID)
	return nil
}

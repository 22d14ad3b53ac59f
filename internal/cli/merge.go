package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	SnapshotOut string
}

// MergeOutput is the JSON payload of a successful merge.
type MergeOutput struct {
	UpdatedRecordID int64   `json:"updated_record_id"`
	DeletedRecordID int64   `json:"deleted_record_id"`
	TouchedIDs      []int64 `json:"touched_ids"`
	SnapshotID      string  `json:"snapshot_id"`
	SnapshotPath    string  `json:"snapshot_path,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <source-id> <target-id>",
		Short: "Merge one record into another",
		Long: `Merge the source record into the target record.

In a single transaction: target fields are filled from the source
where empty, dependent rows (media, tweets, bookmarks, articles) are
reassigned, links are re-pointed at the target with duplicates and
self-loops dropped, and the source record is deleted. A snapshot of
everything the merge touched is captured first; pass it to "trove
undo" to reverse the merge exactly.

Examples:
  trove merge 34 12
  trove merge 34 12 --snapshot-out merge-34-12.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SnapshotOut, "snapshot-out", "", "write the reversal snapshot to this file")

	return cmd
}

func runMerge(opts *MergeOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sourceID, targetID, err := parseIDPair(args[0], args[1])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record id", err)
	}

	engine, st, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	result, snapshot, err := engine.MergeRecords(context.Background(), sourceID, targetID)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if opts.SnapshotOut != "" {
		if err := snapshot.WriteFile(opts.SnapshotOut); err != nil {
			// The merge is already committed; losing the snapshot file
			// must not look like a failed merge.
			formatter.VerboseLog("merge %d -> %d committed but snapshot write failed: %v", sourceID, targetID, err)
			return WrapExitError(ExitCommandError, "merge committed but snapshot could not be written", err)
		}
	}

	out := MergeOutput{
		UpdatedRecordID: result.UpdatedRecord.ID,
		DeletedRecordID: result.DeletedRecordID,
		TouchedIDs:      result.TouchedIDs,
		SnapshotID:      snapshot.ID,
		SnapshotPath:    opts.SnapshotOut,
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "merged record %d into %d\n", out.DeletedRecordID, out.UpdatedRecordID)
	fmt.Fprintf(formatter.Writer, "snapshot: %s\n", out.SnapshotID)
	if out.SnapshotPath != "" {
		fmt.Fprintf(formatter.Writer, "written to: %s\n", out.SnapshotPath)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trovegraph/trove/internal/graph"
	"github.com/trovegraph/trove/internal/store"
)

// LinkCreateOptions holds flags for the link create command.
type LinkCreateOptions struct {
	*RootOptions
	Predicate string
	Notes     string
	LinkID    int64
}

// NewLinkCommand creates the link command group.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage typed links between records",
	}

	cmd.AddCommand(newLinkCreateCommand(rootOpts))
	cmd.AddCommand(newLinkListCommand(rootOpts))
	cmd.AddCommand(newLinkMapCommand(rootOpts))
	cmd.AddCommand(newLinkDeleteCommand(rootOpts))

	return cmd
}

func newLinkCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <source-id> <target-id>",
		Short: "Create or update a link between two records",
		Long: `Create a typed link between two records.

The predicate is resolved against the catalog: a non-canonical
predicate is stored under its canonical inverse with the endpoints
swapped, so "A created_by B" and "B creator_of A" land on the same row.
Creating a link that already exists updates its notes instead of
duplicating it.

Examples:
  trove link create 12 34 --predicate contains
  trove link create 34 12 --predicate contained_in --notes "chapter 3"
  trove link create 12 34 --predicate contains --link-id 7`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinkCreate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Predicate, "predicate", "", "predicate slug from the catalog (required)")
	_ = cmd.MarkFlagRequired("predicate")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes stored on the link")
	cmd.Flags().Int64Var(&opts.LinkID, "link-id", 0, "update this existing link instead of upserting by endpoints")

	return cmd
}

func runLinkCreate(opts *LinkCreateOptions, args []string, cmd *cobra.Command) error {
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

	link, err := engine.UpsertLink(context.Background(), graph.UpsertLinkInput{
		SourceID:       sourceID,
		TargetID:       targetID,
		Predicate:      opts.Predicate,
		Notes:          opts.Notes,
		ExistingLinkID: opts.LinkID,
	})
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(link)
	}

	fmt.Fprintf(formatter.Writer, "link %d: %d -[%s]-> %d\n", link.ID, link.SourceID, link.Predicate, link.TargetID)
	return nil
}

func newLinkListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <record-id>",
		Short: "List all links touching a record",
		Long: `List every link where the record is either endpoint, split into
outgoing (record is source) and incoming (record is target).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinkList(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runLinkList(opts *RootOptions, idArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	recordID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record id", err)
	}

	engine, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	links, err := engine.ListLinksForRecord(context.Background(), recordID)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(links)
	}

	printRecordLinks(formatter, links)
	return nil
}

func newLinkMapCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <record-id>...",
		Short: "List links for several records at once",
		Long: `Fetch the link neighborhoods of several records in one query.

Example:
  trove link map 12 34 56 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinkMap(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runLinkMap(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ids, err := parseIDs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record id", err)
	}

	engine, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	linkMap, err := engine.MapLinks(context.Background(), ids)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(linkMap)
	}

	for _, id := range ids {
		fmt.Fprintf(formatter.Writer, "record %d\n", id)
		printRecordLinks(formatter, linkMap[id])
	}
	return nil
}

func newLinkDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <link-id>...",
		Short:         "Delete links by id",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinkDelete(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runLinkDelete(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ids, err := parseIDs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid link id", err)
	}

	engine, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := engine.DeleteLinks(context.Background(), ids)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int64{"deleted": deleted})
	}

	fmt.Fprintf(formatter.Writer, "deleted %d link(s)\n", deleted)
	return nil
}

func printRecordLinks(formatter *OutputFormatter, links graph.RecordLinks) {
	if len(links.Outgoing) == 0 && len(links.Incoming) == 0 {
		fmt.Fprintln(formatter.Writer, "  (no links)")
		return
	}
	for _, l := range links.Outgoing {
		fmt.Fprintf(formatter.Writer, "  -> %d  [%s]%s\n", l.TargetID, l.Predicate, linkNotes(l))
	}
	for _, l := range links.Incoming {
		fmt.Fprintf(formatter.Writer, "  <- %d  [%s]%s\n", l.SourceID, l.Predicate, linkNotes(l))
	}
}

func linkNotes(l store.Link) string {
	if l.Notes == "" {
		return ""
	}
	return "  " + l.Notes
}

func parseIDPair(a, b string) (int64, int64, error) {
	first, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %q: %w", a, err)
	}
	second, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %q: %w", b, err)
	}
	return first, second, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

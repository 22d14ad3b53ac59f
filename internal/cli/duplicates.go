package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trovegraph/trove/internal/graph"
)

// DuplicatesOptions holds flags for the duplicates command.
type DuplicatesOptions struct {
	*RootOptions
	Limit int
}

// NewDuplicatesCommand creates the duplicates command.
func NewDuplicatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DuplicatesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "duplicates <record-id>",
		Short: "Find likely duplicates of a record",
		Long: `Rank other records by similarity to the given record.

Titles, URLs and other text fields are compared with normalized edit
distance; records carrying embeddings are also compared by cosine
distance. Candidates are returned closest first, each annotated with
its linked creators and attached media count so near-identical results
can be told apart.

Examples:
  trove duplicates 12
  trove duplicates 12 --limit 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicates(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", graph.DefaultDuplicateLimit, "maximum number of candidates to return")

	return cmd
}

func runDuplicates(opts *DuplicatesOptions, idArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	recordID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record id", err)
	}

	engine, st, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	candidates, err := engine.FindDuplicates(context.Background(), recordID, opts.Limit)
	if err != nil {
		return reportEngineError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(candidates)
	}

	if len(candidates) == 0 {
		fmt.Fprintln(formatter.Writer, "no duplicate candidates found")
		return nil
	}

	for _, c := range candidates {
		fmt.Fprintf(formatter.Writer, "%d  %.3f  %s\n", c.Record.ID, c.Distance, c.Record.Title)
		if len(c.Creators) > 0 {
			fmt.Fprintf(formatter.Writer, "      creators: %s\n", strings.Join(c.Creators, ", "))
		}
		if c.MediaCount > 0 {
			fmt.Fprintf(formatter.Writer, "      media: %d\n", c.MediaCount)
		}
	}
	return nil
}

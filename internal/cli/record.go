package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/trovegraph/trove/internal/store"
)

// RecordAddOptions holds flags for the record add command.
type RecordAddOptions struct {
	*RootOptions
	Title        string
	URL          string
	Content      string
	Summary      string
	Notes        string
	Abbreviation string
	Sense        string
	Slug         string
	Private      bool
	Curated      bool
}

// NewRecordCommand creates the record command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create and inspect records",
	}

	cmd.AddCommand(newRecordAddCommand(rootOpts))
	cmd.AddCommand(newRecordShowCommand(rootOpts))

	return cmd
}

func newRecordAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		Long: `Add a record to the graph.

Example:
  trove record add --title "The Go Programming Language" --url https://gopl.io`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "record title")
	cmd.Flags().StringVar(&opts.URL, "url", "", "source URL")
	cmd.Flags().StringVar(&opts.Content, "content", "", "full content")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "short summary")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.Abbreviation, "abbreviation", "", "abbreviated name")
	cmd.Flags().StringVar(&opts.Sense, "sense", "", "disambiguating sense")
	cmd.Flags().StringVar(&opts.Slug, "slug", "", "unique slug")
	cmd.Flags().BoolVar(&opts.Private, "private", false, "mark the record private")
	cmd.Flags().BoolVar(&opts.Curated, "curated", false, "mark the record curated")

	return cmd
}

func runRecordAdd(opts *RecordAddOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	now := time.Now().UTC()
	rec := store.Record{
		Title:        opts.Title,
		URL:          opts.URL,
		Content:      opts.Content,
		Summary:      opts.Summary,
		Notes:        opts.Notes,
		Abbreviation: opts.Abbreviation,
		Sense:        opts.Sense,
		Slug:         opts.Slug,
		Private:      opts.Private,
		Curated:      opts.Curated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.InsertRecord(context.Background(), st.DB(), &rec); err != nil {
		return WrapExitError(ExitCommandError, "failed to insert record", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(rec)
	}

	fmt.Fprintf(formatter.Writer, "record %d created\n", rec.ID)
	return nil
}

func newRecordShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <record-id>",
		Short:         "Show a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordShow(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runRecordShow(opts *RootOptions, idArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	recordID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record id", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rec, err := store.GetRecord(context.Background(), st.DB(), recordID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error("RECORD_NOT_FOUND", fmt.Sprintf("record %d not found", recordID), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("record %d not found", recordID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read record", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(rec)
	}

	fmt.Fprintf(formatter.Writer, "id:      %d\n", rec.ID)
	fmt.Fprintf(formatter.Writer, "title:   %s\n", rec.Title)
	if rec.URL != "" {
		fmt.Fprintf(formatter.Writer, "url:     %s\n", rec.URL)
	}
	if rec.Slug != "" {
		fmt.Fprintf(formatter.Writer, "slug:    %s\n", rec.Slug)
	}
	if rec.Summary != "" {
		fmt.Fprintf(formatter.Writer, "summary: %s\n", rec.Summary)
	}
	fmt.Fprintf(formatter.Writer, "updated: %s\n", rec.UpdatedAt.Format(time.RFC3339))
	return nil
}

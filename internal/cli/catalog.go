package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate the predicate catalog",
	}

	cmd.AddCommand(newCatalogValidateCommand(rootOpts))
	cmd.AddCommand(newCatalogListCommand(rootOpts))

	return cmd
}

func newCatalogValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the predicate catalog",
		Long: `Load the predicate catalog and check it against the schema.

Every predicate must carry a label and type; non-canonical predicates
must name a canonical inverse that points back at them, and each
inverse pair may have exactly one canonical direction.

Examples:
  trove catalog validate
  trove catalog validate --catalog ./predicates`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runCatalogValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := loadCatalog(opts)
	if err != nil {
		_ = formatter.Error("CATALOG_INVALID", err.Error(), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("catalog validation failed: %v", err))
	}

	preds := cat.Predicates()
	formatter.VerboseLog("loaded %d predicate(s)", len(preds))

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"valid":      true,
			"predicates": len(preds),
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ catalog valid (%d predicates)\n", len(preds))
	return nil
}

func newCatalogListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List catalog predicates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(rootOpts, cmd)
		},
	}

	return cmd
}

func runCatalogList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := loadCatalog(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load predicate catalog", err)
	}

	preds := cat.Predicates()

	if formatter.Format == "json" {
		return formatter.Success(preds)
	}

	for _, p := range preds {
		marker := " "
		if p.Canonical {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-14s %-24s %s", marker, p.Slug, p.Label, p.Type)
		if p.Inverse != "" {
			line += "  (inverse: " + p.Inverse + ")"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trovegraph/trove/internal/catalog"
	"github.com/trovegraph/trove/internal/graph"
	"github.com/trovegraph/trove/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath       string
	CatalogDir   string // directory of CUE predicate definitions; empty uses the built-in catalog
	RegistryPath string // YAML dependent-table registry; empty uses the built-in registry
	Verbose      bool
	Format       string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the trove CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "trove",
		Short: "Trove - record graph consistency engine",
		Long:  "Manage typed links between records, surface duplicates, and merge them reversibly.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "trove.db", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.CatalogDir, "catalog", "", "directory of CUE predicate definitions (default: built-in catalog)")
	cmd.PersistentFlags().StringVar(&opts.RegistryPath, "registry", "", "YAML dependent-table registry (default: built-in registry)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewDuplicatesCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter builds the output formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openEngine opens the database and assembles the graph engine from the
// configured catalog and registry. The caller owns the returned store
// and must Close it.
func openEngine(opts *RootOptions) (*graph.Engine, *store.Store, error) {
	cat, err := loadCatalog(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load predicate catalog", err)
	}

	registry, err := loadRegistry(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load dependent registry", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return graph.New(st, cat, registry), st, nil
}

func loadCatalog(opts *RootOptions) (*catalog.Catalog, error) {
	if opts.CatalogDir == "" {
		return catalog.LoadDefault()
	}
	return catalog.Load(opts.CatalogDir)
}

func loadRegistry(opts *RootOptions) (*store.Registry, error) {
	if opts.RegistryPath == "" {
		return store.DefaultRegistry(), nil
	}
	return store.LoadRegistry(opts.RegistryPath)
}

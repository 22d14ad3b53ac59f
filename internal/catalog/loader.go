package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

//go:embed catalog.cue
var defaultCatalogCUE string

// schemaCUE constrains catalog files. Every file is unified against
// this before decoding, so a malformed catalog fails at load, not at
// first use.
const schemaCUE = `
#Predicate: {
	label:     string & !=""
	type:      "containment" | "creation" | "description" | "identity" | "quotation" | "sequence"
	canonical: bool
	inverse?:  string & !=""
}
predicates: [string]: #Predicate
`

// Load reads and validates a predicate catalog from a directory of CUE
// files. Uses the CUE SDK's Go API directly (not CLI subprocess).
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	return fromValue(ctx, value)
}

// LoadDefault returns the built-in catalog embedded in the binary.
func LoadDefault() (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(defaultCatalogCUE)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling embedded catalog: %w", err)
	}
	return fromValue(ctx, value)
}

// fromValue unifies a CUE value with the catalog schema, decodes the
// predicates, and runs the pair-invariant validation in New.
func fromValue(ctx *cue.Context, value cue.Value) (*Catalog, error) {
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}

	unified := value.Unify(schema)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("catalog does not satisfy schema: %w", err)
	}

	predsVal := unified.LookupPath(cue.ParsePath("predicates"))
	if !predsVal.Exists() {
		return nil, fmt.Errorf("catalog has no predicates field")
	}

	iter, err := predsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating predicates: %w", err)
	}

	var predicates []Predicate
	for iter.Next() {
		var p Predicate
		if err := iter.Value().Decode(&p); err != nil {
			return nil, fmt.Errorf("decoding predicate %s: %w", iter.Selector(), err)
		}
		p.Slug = iter.Selector().Unquoted()
		predicates = append(predicates, p)
	}

	if len(predicates) == 0 {
		return nil, fmt.Errorf("catalog declares no predicates")
	}

	return New(predicates)
}

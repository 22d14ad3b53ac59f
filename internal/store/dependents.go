package store

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

// Dependent names one table/column pair holding a foreign key to
// records.id. The merge and undo engines iterate these generically:
// no per-source logic beyond "table -> foreign-key column".
type Dependent struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Registry is the fixed, explicit list of dependent tables.
// Loaded once at startup and treated as immutable.
type Registry struct {
	Dependents []Dependent `yaml:"dependents"`
}

// Assignment records one dependent row's foreign-key value at snapshot
// time: "row RowID of Table pointed at RecordID".
type Assignment struct {
	Table    string `json:"table"`
	RowID    int64  `json:"row_id"`
	RecordID int64  `json:"record_id"`
}

// identPattern restricts table and column names to plain SQL
// identifiers. Registry values are interpolated into SQL text (SQLite
// cannot parameterize identifiers), so anything else is rejected at
// load time.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultRegistry returns the built-in dependent-table registry
// matching the tables created by schema.sql.
func DefaultRegistry() *Registry {
	reg, err := parseRegistry(defaultRegistryYAML)
	if err != nil {
		// The embedded registry is compiled in; failing to parse it is
		// a programming error, not a runtime condition.
		panic(fmt.Sprintf("embedded registry invalid: %v", err))
	}
	return reg
}

// LoadRegistry reads a dependent-table registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	reg, err := parseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	return reg, nil
}

func parseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(reg.Dependents) == 0 {
		return nil, fmt.Errorf("registry lists no dependent tables")
	}
	seen := make(map[string]bool, len(reg.Dependents))
	for _, dep := range reg.Dependents {
		if !identPattern.MatchString(dep.Table) {
			return nil, fmt.Errorf("invalid table name %q", dep.Table)
		}
		if !identPattern.MatchString(dep.Column) {
			return nil, fmt.Errorf("invalid column name %q", dep.Column)
		}
		if seen[dep.Table] {
			return nil, fmt.Errorf("duplicate table %q", dep.Table)
		}
		seen[dep.Table] = true
	}
	return &reg, nil
}

// ListDependentRows returns the current assignments in one dependent
// table that point at the given record, ordered by row id.
func ListDependentRows(ctx context.Context, q DBTX, dep Dependent, recordID int64) ([]Assignment, error) {
	query := fmt.Sprintf(
		`SELECT id, %s FROM %s WHERE %s = ? ORDER BY id ASC`,
		dep.Column, dep.Table, dep.Column,
	)
	rows, err := q.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list %s rows: %w", dep.Table, err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		a := Assignment{Table: dep.Table}
		if err := rows.Scan(&a.RowID, &a.RecordID); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", dep.Table, err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", dep.Table, err)
	}
	return assignments, nil
}

// ReassignDependentRows repoints every row in one dependent table from
// one record to another. Returns the number of rows moved.
func ReassignDependentRows(ctx context.Context, q DBTX, dep Dependent, fromID, toID int64) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, dep.Table, dep.Column, dep.Column)
	res, err := q.ExecContext(ctx, query, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("reassign %s rows: %w", dep.Table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign %s rows: rows affected: %w", dep.Table, err)
	}
	return rows, nil
}

// SetDependentRow restores a single dependent row's foreign key to a
// recorded value. Used by the undo engine when replaying a snapshot.
func SetDependentRow(ctx context.Context, q DBTX, dep Dependent, rowID, recordID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, dep.Table, dep.Column)
	if _, err := q.ExecContext(ctx, query, recordID, rowID); err != nil {
		return fmt.Errorf("restore %s row %d: %w", dep.Table, rowID, err)
	}
	return nil
}

// Find returns the registry entry for a table name, used by the undo
// engine to map snapshot assignments back to registry entries.
func (r *Registry) Find(table string) (Dependent, bool) {
	for _, dep := range r.Dependents {
		if dep.Table == table {
			return dep, true
		}
	}
	return Dependent{}, false
}

// Package store implements the local source of truth: a typed query and
// mutation layer over two interchangeable backends, SQLite on devices with a
// native relational engine and a JSON document collection everywhere else.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Row is a single stored record keyed by column name.
type Row map[string]any

// Op enumerates the comparison operators the query layer supports.
type Op string

const (
	OpEq   Op = "eq"
	OpIn   Op = "in"
	OpGte  Op = "gte"
	OpLte  Op = "lte"
	OpLike Op = "like"
)

// Cond is a single column comparison.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Eq builds an equality condition.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

// In builds a membership condition. Values must be a non-empty slice.
func In(column string, values []any) Cond {
	return Cond{Column: column, Op: OpIn, Value: values}
}

// Gte builds a greater-or-equal condition.
func Gte(column string, value any) Cond {
	return Cond{Column: column, Op: OpGte, Value: value}
}

// Lte builds a less-or-equal condition.
func Lte(column string, value any) Cond {
	return Cond{Column: column, Op: OpLte, Value: value}
}

// Like builds a substring-match condition ("%value%").
func Like(column string, value string) Cond {
	return Cond{Column: column, Op: OpLike, Value: value}
}

// Query describes a read. Where conditions combine with AND; when OrAny is
// non-empty its conditions combine with OR and the resulting group ANDs with
// Where.
type Query struct {
	Table   string
	Where   []Cond
	OrAny   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// MutationKind enumerates the supported write shapes.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpsert MutationKind = "upsert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation describes a single write. Values carries the column assignments
// for inserts/upserts/updates; Where scopes updates and deletes. ConflictCols
// names the identity columns the document backend uses to detect an upsert
// collision (SQLite relies on its unique constraints).
type Mutation struct {
	Kind         MutationKind
	Table        string
	Values       Row
	Where        []Cond
	ConflictCols []string
}

// Insert builds an insert mutation.
func Insert(table string, values Row) Mutation {
	return Mutation{Kind: MutationInsert, Table: table, Values: values}
}

// Upsert builds an insert-or-replace mutation.
func Upsert(table string, values Row, conflictCols ...string) Mutation {
	return Mutation{Kind: MutationUpsert, Table: table, Values: values, ConflictCols: conflictCols}
}

// Update builds a partial update mutation.
func Update(table string, values Row, where ...Cond) Mutation {
	return Mutation{Kind: MutationUpdate, Table: table, Values: values, Where: where}
}

// Delete builds a delete mutation.
func Delete(table string, where ...Cond) Mutation {
	return Mutation{Kind: MutationDelete, Table: table, Where: where}
}

// Store is the durable, transactional storage contract shared by both
// backends. All mutation paths serialize through the implementation; a
// failed RunTransaction leaves no partial effects behind.
type Store interface {
	Query(ctx context.Context, q Query) ([]Row, error)
	Execute(ctx context.Context, m Mutation) (int64, error)
	RunTransaction(ctx context.Context, muts []Mutation) error
	Migrate(ctx context.Context) error
	Close() error
}

func validateQuery(q Query) error {
	if q.Table == "" {
		return fmt.Errorf("query table is required")
	}
	for _, c := range append(append([]Cond{}, q.Where...), q.OrAny...) {
		if err := validateCond(c); err != nil {
			return err
		}
	}
	return nil
}

func validateCond(c Cond) error {
	if c.Column == "" {
		return fmt.Errorf("condition column is required")
	}
	if c.Op == OpIn {
		values, ok := c.Value.([]any)
		if !ok || len(values) == 0 {
			return fmt.Errorf("IN condition on %s requires a non-empty slice", c.Column)
		}
	}
	return nil
}

func validateMutation(m Mutation) error {
	if m.Table == "" {
		return fmt.Errorf("mutation table is required")
	}
	switch m.Kind {
	case MutationInsert, MutationUpsert:
		if len(m.Values) == 0 {
			return fmt.Errorf("%s into %s requires values", m.Kind, m.Table)
		}
	case MutationUpdate:
		if len(m.Values) == 0 {
			return fmt.Errorf("update on %s requires values", m.Table)
		}
		if len(m.Where) == 0 {
			return fmt.Errorf("update on %s requires conditions", m.Table)
		}
	case MutationDelete:
		if len(m.Where) == 0 {
			return fmt.Errorf("delete on %s requires conditions", m.Table)
		}
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
	for _, c := range m.Where {
		if err := validateCond(c); err != nil {
			return err
		}
	}
	return nil
}

// sortedColumns returns the value columns in deterministic order so generated
// statements are stable.
func sortedColumns(values Row) []string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j] < cols[j-1]; j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}
	return cols
}

func condSQL(c Cond) (string, []any) {
	switch c.Op {
	case OpIn:
		return c.Column + " IN ?", []any{c.Value}
	case OpGte:
		return c.Column + " >= ?", []any{c.Value}
	case OpLte:
		return c.Column + " <= ?", []any{c.Value}
	case OpLike:
		return c.Column + " LIKE ?", []any{"%" + fmt.Sprint(c.Value) + "%"}
	default:
		return c.Column + " = ?", []any{c.Value}
	}
}

func condClauseSQL(c Cond) (string, []any) {
	if c.Op == OpIn {
		values := c.Value.([]any)
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		return c.Column + " IN (" + placeholders + ")", values
	}
	return condSQL(c)
}

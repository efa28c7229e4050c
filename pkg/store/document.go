package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cashlia/cashlia-core/pkg/errors"
)

// DocumentStore is the fallback backend for devices without a native SQLite
// engine. Each table lives in its own JSON file under the configured
// directory; every operation serializes through a single mutex and files are
// replaced atomically via a temp file and rename.
//
// Its query and mutation semantics match SQLiteStore so callers never need to
// know which backend is active.
type DocumentStore struct {
	mu  sync.Mutex
	dir string
}

// NewDocumentStore creates the directory if needed and returns the store.
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "create document store directory")
	}
	return &DocumentStore{dir: dir}, nil
}

// Migrate ensures every table file exists.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range AllTables {
		if _, err := os.Stat(s.tablePath(table)); err == nil {
			continue
		}
		if err := s.persist(table, []Row{}); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a read and returns the matching rows.
func (s *DocumentStore) Query(ctx context.Context, q Query) ([]Row, error) {
	if err := validateQuery(q); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid query")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(q.Table)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range rows {
		if matchesQuery(row, q) {
			out = append(out, row)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return valueLess(out[j][q.OrderBy], out[i][q.OrderBy])
			}
			return valueLess(out[i][q.OrderBy], out[j][q.OrderBy])
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Execute applies a single mutation and returns the affected row count.
func (s *DocumentStore) Execute(ctx context.Context, m Mutation) (int64, error) {
	if err := validateMutation(m); err != nil {
		return 0, errors.Wrap(errors.CodeValidation, err, "invalid mutation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(m.Table)
	if err != nil {
		return 0, err
	}
	rows, affected := applyMutation(rows, m)
	if err := s.persist(m.Table, rows); err != nil {
		return 0, err
	}
	return affected, nil
}

// RunTransaction applies every mutation atomically. All table files are
// staged as temp files first and only renamed into place once each stage
// succeeded, so a failure before commit leaves the previous state intact.
// The commit itself is one rename per touched table; a rename failing after
// the first leaves the batch partially applied. Renames within one
// directory do not fail independently in practice, so the window is
// accepted rather than paid for with a journal file.
func (s *DocumentStore) RunTransaction(ctx context.Context, muts []Mutation) error {
	for _, m := range muts {
		if err := validateMutation(m); err != nil {
			return errors.Wrap(errors.CodeValidation, err, "invalid mutation")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := map[string][]Row{}
	for _, m := range muts {
		rows, ok := staged[m.Table]
		if !ok {
			loaded, err := s.load(m.Table)
			if err != nil {
				return err
			}
			rows = loaded
		}
		rows, _ = applyMutation(rows, m)
		staged[m.Table] = rows
	}

	tmp := map[string]string{}
	for table, rows := range staged {
		path, err := s.stage(table, rows)
		if err != nil {
			for _, p := range tmp {
				os.Remove(p)
			}
			return err
		}
		tmp[table] = path
	}
	for table, path := range tmp {
		if err := os.Rename(path, s.tablePath(table)); err != nil {
			return errors.Wrap(errors.CodeDependency, err, "commit table "+table)
		}
	}
	return nil
}

// Close is a no-op; files are flushed on every write.
func (s *DocumentStore) Close() error { return nil }

func (s *DocumentStore) tablePath(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *DocumentStore) load(table string) ([]Row, error) {
	data, err := os.ReadFile(s.tablePath(table))
	if err != nil {
		if os.IsNotExist(err) {
			return []Row{}, nil
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "read table "+table)
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "decode table "+table)
	}
	return rows, nil
}

func (s *DocumentStore) persist(table string, rows []Row) error {
	path, err := s.stage(table, rows)
	if err != nil {
		return err
	}
	if err := os.Rename(path, s.tablePath(table)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "commit table "+table)
	}
	return nil
}

func (s *DocumentStore) stage(table string, rows []Row) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "encode table "+table)
	}
	f, err := os.CreateTemp(s.dir, table+".*.tmp")
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "stage table "+table)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(errors.CodeDependency, err, "stage table "+table)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(errors.CodeDependency, err, "stage table "+table)
	}
	return f.Name(), nil
}

func applyMutation(rows []Row, m Mutation) ([]Row, int64) {
	switch m.Kind {
	case MutationInsert:
		return append(rows, normalizeRow(m.Values)), 1
	case MutationUpsert:
		inserted := normalizeRow(m.Values)
		for i, row := range rows {
			if upsertCollides(row, inserted, m.ConflictCols) {
				rows[i] = inserted
				return rows, 1
			}
		}
		return append(rows, inserted), 1
	case MutationUpdate:
		var affected int64
		for i, row := range rows {
			if !matchesAll(row, m.Where) {
				continue
			}
			updated := make(Row, len(row)+len(m.Values))
			for k, v := range row {
				updated[k] = v
			}
			for k, v := range normalizeRow(m.Values) {
				updated[k] = v
			}
			rows[i] = updated
			affected++
		}
		return rows, affected
	default:
		var kept []Row
		var affected int64
		for _, row := range rows {
			if matchesAll(row, m.Where) {
				affected++
				continue
			}
			kept = append(kept, row)
		}
		return kept, affected
	}
}

// upsertCollides reports whether candidate replaces existing, either via the
// primary key or via the declared conflict columns. Mirrors SQLite's
// INSERT OR REPLACE across the table's unique constraints.
func upsertCollides(existing, candidate Row, conflictCols []string) bool {
	pk := "id"
	if _, ok := candidate["token"]; ok {
		pk = "token"
	}
	if valuesEqual(existing[pk], candidate[pk]) {
		return true
	}
	if len(conflictCols) == 0 {
		return false
	}
	for _, col := range conflictCols {
		if !valuesEqual(existing[col], candidate[col]) {
			return false
		}
	}
	return true
}

func matchesQuery(row Row, q Query) bool {
	if !matchesAll(row, q.Where) {
		return false
	}
	if len(q.OrAny) == 0 {
		return true
	}
	for _, c := range q.OrAny {
		if matchesCond(row, c) {
			return true
		}
	}
	return false
}

func matchesAll(row Row, conds []Cond) bool {
	for _, c := range conds {
		if !matchesCond(row, c) {
			return false
		}
	}
	return true
}

func matchesCond(row Row, c Cond) bool {
	value := row[c.Column]
	switch c.Op {
	case OpIn:
		for _, candidate := range c.Value.([]any) {
			if valuesEqual(value, candidate) {
				return true
			}
		}
		return false
	case OpGte:
		return valuesEqual(value, c.Value) || valueLess(c.Value, value)
	case OpLte:
		return valuesEqual(value, c.Value) || valueLess(value, c.Value)
	case OpLike:
		text, ok := value.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(asString(c.Value)))
	default:
		return valuesEqual(value, c.Value)
	}
}

// normalizeRow converts numeric values to float64 so in-memory rows compare
// the same before and after a JSON round trip.
func normalizeRow(values Row) Row {
	out := make(Row, len(values))
	for k, v := range values {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	if f, ok := asFloat(v); ok {
		return f
	}
	return v
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return false
}

func valueLess(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	return asString(a) < asString(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}

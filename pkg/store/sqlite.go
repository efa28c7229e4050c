package store

import (
	"context"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cashlia/cashlia-core/pkg/errors"
)

// SQLiteStore is the relational backend used on devices with a native SQLite
// engine.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path. Pass
// "file::memory:?cache=shared" for an in-memory database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "open sqlite database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "access sqlite pool")
	}
	// A single connection keeps writes serialized and in-memory databases
	// stable across goroutines.
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return errors.Wrap(errors.CodeDependency, err, "apply schema")
		}
	}
	return nil
}

// Query runs a read and returns the matching rows.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Row, error) {
	if err := validateQuery(q); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid query")
	}
	tx := s.db.WithContext(ctx).Table(q.Table)
	for _, c := range q.Where {
		clauseSQL, args := condSQL(c)
		tx = tx.Where(clauseSQL, args...)
	}
	if len(q.OrAny) > 0 {
		firstSQL, firstArgs := condSQL(q.OrAny[0])
		group := s.db.Where(firstSQL, firstArgs...)
		for _, c := range q.OrAny[1:] {
			clauseSQL, args := condSQL(c)
			group = group.Or(clauseSQL, args...)
		}
		tx = tx.Where(group)
	}
	if q.OrderBy != "" {
		direction := " ASC"
		if q.Desc {
			direction = " DESC"
		}
		tx = tx.Order(q.OrderBy + direction)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var raw []map[string]any
	if err := tx.Find(&raw).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "query "+q.Table)
	}
	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = Row(r)
	}
	return rows, nil
}

// Execute applies a single mutation and returns the affected row count.
func (s *SQLiteStore) Execute(ctx context.Context, m Mutation) (int64, error) {
	if err := validateMutation(m); err != nil {
		return 0, errors.Wrap(errors.CodeValidation, err, "invalid mutation")
	}
	stmt, args := mutationSQL(m)
	result := s.db.WithContext(ctx).Exec(stmt, args...)
	if result.Error != nil {
		return 0, errors.Wrap(errors.CodeDependency, result.Error, string(m.Kind)+" on "+m.Table)
	}
	return result.RowsAffected, nil
}

// RunTransaction applies every mutation atomically.
func (s *SQLiteStore) RunTransaction(ctx context.Context, muts []Mutation) error {
	for _, m := range muts {
		if err := validateMutation(m); err != nil {
			return errors.Wrap(errors.CodeValidation, err, "invalid mutation")
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range muts {
			stmt, args := mutationSQL(m)
			if err := tx.Exec(stmt, args...).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "run transaction")
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mutationSQL(m Mutation) (string, []any) {
	switch m.Kind {
	case MutationInsert, MutationUpsert:
		verb := "INSERT INTO "
		if m.Kind == MutationUpsert {
			verb = "INSERT OR REPLACE INTO "
		}
		cols := sortedColumns(m.Values)
		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = m.Values[col]
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		return verb + m.Table + " (" + strings.Join(cols, ",") + ") VALUES (" + placeholders + ")", args
	case MutationUpdate:
		cols := sortedColumns(m.Values)
		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+len(m.Where))
		for i, col := range cols {
			sets[i] = col + " = ?"
			args = append(args, m.Values[col])
		}
		whereSQL, whereArgs := whereClause(m.Where)
		return "UPDATE " + m.Table + " SET " + strings.Join(sets, ", ") + whereSQL, append(args, whereArgs...)
	default:
		whereSQL, whereArgs := whereClause(m.Where)
		return "DELETE FROM " + m.Table + whereSQL, whereArgs
	}
}

func whereClause(conds []Cond) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, len(conds))
	var args []any
	for i, c := range conds {
		clauseSQL, clauseArgs := condClauseSQL(c)
		parts[i] = clauseSQL
		args = append(args, clauseArgs...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

package store

import "strconv"

// The accessors below absorb the type differences between the two backends:
// SQLite hands back int64/float64/string, the document backend hands back
// whatever encoding/json produced.

// String returns the column as a string, or "" when absent or null.
func (r Row) String(column string) string {
	s, _ := r[column].(string)
	return s
}

// Float returns the column as a float64, or 0 when absent.
func (r Row) Float(column string) float64 {
	if f, ok := asFloat(r[column]); ok {
		return f
	}
	if s, ok := r[column].(string); ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	return 0
}

// Int returns the column as an int64, or 0 when absent.
func (r Row) Int(column string) int64 {
	return int64(r.Float(column))
}

// Bool returns the column interpreted as a boolean flag (stored as 0/1).
func (r Row) Bool(column string) bool {
	if b, ok := r[column].(bool); ok {
		return b
	}
	return r.Int(column) != 0
}

// IsNull reports whether the column is absent or null.
func (r Row) IsNull(column string) bool {
	return r[column] == nil
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

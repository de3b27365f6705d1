// Package sqlxrepos implements the append-mostly Postgres repositories (audit trail, notifications) with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// NewDB wraps an opened postgres connection pool.
func NewDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// where accumulates AND-ed conditions written with `?` bind vars.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) addRange(column string, from, to time.Time) {
	if !from.IsZero() {
		w.add(column+" >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add(column+" <= ?", to.UTC())
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

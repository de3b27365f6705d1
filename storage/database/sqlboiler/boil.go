// Package boiledrepos implements the Postgres repositories on top of the sqlboiler query runtime.
package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"
	"github.com/volatiletech/strmangle"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/policy"
)

var dialect = drivers.Dialect{
	LQ:                   0x22,
	RQ:                   0x22,
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// newQuery builds a query with the postgres dialect, the way generated models do.
func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

// row is implemented by the table rows; columns()[0] is the primary key.
type row interface {
	columns() []string
	values() []interface{}
}

func insert(ctx context.Context, exec boil.ContextExecutor, table string, r row) error {
	cols := r.columns()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		strmangle.IdentQuote(dialect.LQ, dialect.RQ, table),
		strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, cols), ","),
		strmangle.Placeholders(dialect.UseIndexPlaceholders, len(cols), 1, 1),
	)
	_, err := queries.Raw(query, r.values()...).ExecContext(ctx, exec)
	return err
}

// update saves every column of r but its primary key; it returns sql.ErrNoRows when nothing matched.
func update(ctx context.Context, exec boil.ContextExecutor, table string, r row) error {
	cols, vals := r.columns(), r.values()
	if id, _ := vals[0].(string); !core.IsValidID(id) {
		return sql.ErrNoRows
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		strmangle.IdentQuote(dialect.LQ, dialect.RQ, table),
		strmangle.SetParamNames("\"", "\"", 1, cols[1:]),
		strmangle.WhereClause("\"", "\"", len(cols), cols[:1]),
	)
	res, err := queries.Raw(query, append(vals[1:], vals[0])...).ExecContext(ctx, exec)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func deleteByID(ctx context.Context, exec boil.ContextExecutor, table, id string) error {
	if !core.IsValidID(id) {
		return sql.ErrNoRows
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		strmangle.IdentQuote(dialect.LQ, dialect.RQ, table),
		strmangle.WhereClause("\"", "\"", 1, []string{"id"}),
	)
	res, err := queries.Raw(query, id).ExecContext(ctx, exec)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// findByID binds the row of table holding id into obj.
func findByID(ctx context.Context, exec boil.Executor, table, id string, obj interface{}) error {
	if !core.IsValidID(id) {
		return sql.ErrNoRows
	}
	return newQuery(qm.From(table), qm.Where("id = ?", id)).Bind(ctx, exec, obj)
}

func count(ctx context.Context, exec boil.ContextExecutor, mods ...qm.QueryMod) (int, error) {
	q := newQuery(mods...)
	queries.SetSelect(q, nil)
	queries.SetCount(q)

	var n int64
	if err := q.QueryRowContext(ctx, exec).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func exists(ctx context.Context, exec boil.ContextExecutor, mods ...qm.QueryMod) (bool, error) {
	q := newQuery(mods...)
	queries.SetSelect(q, nil)
	queries.SetCount(q)
	queries.SetLimit(q, 1)

	var n int64
	if err := q.QueryRowContext(ctx, exec).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// trap maps "no rows" errors to notFound and wraps the others with msg.
func trap(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// violatedConstraint returns the name of the unique constraint err violates, if any.
func violatedConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// violatesForeignKey reports whether err is a foreign key violation.
func violatesForeignKey(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == foreignKeyViolation
}

// inTx runs fn in a transaction, committed when fn succeeds.
func inTx(ctx context.Context, db core.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Query mods

// search matches keyword case-insensitively against any of columns.
func search(keyword string, columns ...string) []qm.QueryMod {
	if keyword == "" {
		return nil
	}
	val := "%" + keyword + "%"
	clauses := lo.Map(columns, func(col string, _ int) string { return col + " ILIKE ?" })
	args := lo.Map(columns, func(string, int) interface{} { return val })
	return []qm.QueryMod{qm.Where("("+strings.Join(clauses, " OR ")+")", args...)}
}

func eq(column string, val string) []qm.QueryMod {
	if val == "" {
		return nil
	}
	return []qm.QueryMod{qm.Where(column+" = ?", val)}
}

// eqID compares a uuid column; ids that are not uuids match nothing.
func eqID(column string, id string) []qm.QueryMod {
	if id == "" {
		return nil
	}
	if !core.IsValidID(id) {
		return []qm.QueryMod{qm.Where("FALSE")}
	}
	return []qm.QueryMod{qm.Where(column+" = ?", id)}
}

func eqBool(column string, val *bool) []qm.QueryMod {
	if val == nil {
		return nil
	}
	return []qm.QueryMod{qm.Where(column+" = ?", *val)}
}

// oneOf ignores an empty vals.
func oneOf(column string, vals []string) []qm.QueryMod {
	if len(vals) == 0 {
		return nil
	}
	return in(column, vals)
}

// in matches nothing when vals is empty but not nil.
func in(column string, vals []string) []qm.QueryMod {
	if vals == nil {
		return nil
	}
	if len(vals) == 0 {
		return []qm.QueryMod{qm.Where("FALSE")}
	}
	return []qm.QueryMod{qm.WhereIn(column+" IN ?", lo.ToAnySlice(vals)...)}
}

func between(column string, from, to time.Time) []qm.QueryMod {
	var mods []qm.QueryMod
	if !from.IsZero() {
		mods = append(mods, qm.Where(column+" >= ?", from.UTC()))
	}
	if !to.IsZero() {
		mods = append(mods, qm.Where(column+" <= ?", to.UTC()))
	}
	return mods
}

// subjectColumns names the SQL expressions holding the relationships of a policy.Subject.
type subjectColumns struct {
	creator, moze, assignee, preferred string
}

// scoped translates scope into a WHERE clause over cols.
func scoped(scope policy.Scope, cols subjectColumns) []qm.QueryMod {
	if scope.Unrestricted {
		return nil
	}
	clause, args := scopeClause(scope, cols)
	return []qm.QueryMod{qm.Where(clause, args...)}
}

// scopeClause is the SQL condition of a restricted scope.
func scopeClause(scope policy.Scope, cols subjectColumns) (string, []interface{}) {
	if scope.Unrestricted {
		return "TRUE", nil
	}

	var clauses []string
	var args []interface{}
	add := func(col, clause string, arg interface{}) {
		if col != "" {
			clauses = append(clauses, col+clause)
			args = append(args, arg)
		}
	}
	if scope.CreatorID != "" {
		add(cols.creator, " = ?", scope.CreatorID)
	}
	if scope.AssigneeID != "" {
		add(cols.assignee, " = ?", scope.AssigneeID)
	}
	if scope.PreferredID != "" {
		add(cols.preferred, " = ?", scope.PreferredID)
	}
	if len(scope.MozeIDs) > 0 {
		add(cols.moze, " = ANY(?::uuid[])", types.StringArray(scope.MozeIDs))
	}

	if len(clauses) == 0 {
		return "FALSE", nil
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// overdue keeps the open requests of which the age, measured at now, exceeds their level's threshold;
// when want is false it keeps the others. Levels without a threshold are treated as medium.
func overdue(levelCol, statusCol, createdCol string, want *bool, now time.Time) []qm.QueryMod {
	if want == nil {
		return nil
	}
	levels := lo.Keys(policy.Thresholds)
	sort.Strings(levels)

	late := make([]string, 0, len(levels)+1)
	args := []interface{}{types.StringArray(policy.TerminalStatuses)}
	for _, lvl := range levels {
		late = append(late, fmt.Sprintf("(%s = ? AND %s < ?)", levelCol, createdCol))
		args = append(args, lvl, policy.OverdueBefore(lvl, now).UTC())
	}
	late = append(late, fmt.Sprintf("(NOT (%s = ANY(?::text[])) AND %s < ?)", levelCol, createdCol))
	args = append(args, types.StringArray(levels), policy.OverdueBefore(policy.LevelMedium, now).UTC())

	clause := fmt.Sprintf("(NOT (%s = ANY(?::text[])) AND (%s))", statusCol, strings.Join(late, " OR "))
	if !*want {
		clause = "NOT " + clause
	}
	return []qm.QueryMod{qm.Where(clause, args...)}
}

// orderBy translates ordering; fields found in exprs are replaced by their SQL expression,
// the others are prefixed with prefix.
func orderBy(ordering []core.DBOrdering, prefix string, exprs map[string]string, defaults string) qm.QueryMod {
	if len(ordering) == 0 {
		return qm.OrderBy(defaults)
	}
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if expr, ok := exprs[ord.Field]; ok {
			ord.Field = expr
		} else {
			ord.Field = prefix + ord.Field
		}
		list = append(list, ord.String())
	}
	return qm.OrderBy(strings.Join(list, ", "))
}

// levelRank orders priorities and urgencies from the least to the most pressing.
func levelRank(column string) string {
	return fmt.Sprintf("CASE %s WHEN '%s' THEN 1 WHEN '%s' THEN 2 WHEN '%s' THEN 3 WHEN '%s' THEN 4 WHEN '%s' THEN 5 ELSE 0 END",
		column, policy.LevelLow, policy.LevelMedium, policy.LevelHigh, policy.LevelUrgent, policy.LevelEmergency)
}

// Null helpers

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

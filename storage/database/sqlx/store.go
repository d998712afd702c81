package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type txKey struct{}

// Store hands the repositories either the pool or the transaction carried by the context.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

var (
	_ core.Transactor = (*Store)(nil)
	_ core.Pinger     = (*Store)(nil)
)

func NewStore(db *sqlx.DB, queryTimeout time.Duration) *Store {
	return &Store{db: db, timeout: queryTimeout}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in a transaction, committed if fn returns nil. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				// the connection state is unknown: the app should restart
				err = core.NewShutdownError(errors.Wrapf(rbErr, "rolling back transaction after: %v", err).Error())
			}
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(context.WithValue(ctx, txKey{}, tx))
}

var errNoTx = errors.New("lock taken outside a transaction")

// advisoryLock blocks until the lock named key is free, then holds it until the transaction ends.
func (s *Store) advisoryLock(ctx context.Context, key string) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); !ok {
		return errNoTx
	}

	ctx, exec, cancel := s.conn(ctx)
	defer cancel()

	_, err := exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key)
	return errors.Wrap(err, "taking advisory lock")
}

// conn returns the executor for ctx, bounded by the query timeout.
func (s *Store) conn(ctx context.Context) (context.Context, sqlx.ExtContext, context.CancelFunc) {
	ctx, cancel := core.WithDBTimeout(ctx, s.timeout)
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return ctx, tx, cancel
	}
	return ctx, s.db, cancel
}

func (s *Store) insert(ctx context.Context, q string, row interface{}) error {
	ctx, exec, cancel := s.conn(ctx)
	defer cancel()

	_, err := sqlx.NamedExecContext(ctx, exec, q, row)
	return err
}

func (s *Store) get(ctx context.Context, dest interface{}, notFound error, q string, args ...interface{}) error {
	ctx, exec, cancel := s.conn(ctx)
	defer cancel()

	if err := sqlx.GetContext(ctx, exec, dest, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return notFound
		}
		return errors.Wrap(err, "selecting row")
	}
	return nil
}

func (s *Store) selectRows(ctx context.Context, dest interface{}, q string, args ...interface{}) error {
	ctx, exec, cancel := s.conn(ctx)
	defer cancel()

	return errors.Wrap(sqlx.SelectContext(ctx, exec, dest, q, args...), "selecting rows")
}

func (s *Store) update(ctx context.Context, notFound error, q string, args ...interface{}) error {
	ctx, exec, cancel := s.conn(ctx)
	defer cancel()

	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "updating row")
	}
	if rowsAffected(res) == 0 {
		return notFound
	}
	return nil
}

// pgError extracts the SQLSTATE code and constraint name from either driver's error.
func pgError(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgError(err)
	return code == codeUniqueViolation
}

// foreignKeyViolation returns the violated constraint, "" when err is not a foreign key violation.
func foreignKeyViolation(err error) string {
	code, constraint := pgError(err)
	if code != codeForeignKeyViolation {
		return ""
	}
	return constraint
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// where accumulates "?" conditions, rebound to $n placeholders by build.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) build(query, suffix string) (string, []interface{}) {
	for i, c := range w.conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query+" "+suffix), w.args
}

type jsonStrings map[string]string

func (m jsonStrings) Value() (driver.Value, error) {
	if m == nil {
		m = jsonStrings{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *jsonStrings) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		return nil
	}
	return errors.Errorf("cannot scan %T into jsonStrings", src)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

package store

import (
	"context"
	"database/sql"
)

// fakeConn satisfies DB, Tx and the narrower Execer/Getter/Selecter seams.
// Unset hooks succeed without touching dest.
type fakeConn struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c fakeConn) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if c.getFn != nil {
		return c.getFn(ctx, dest, query, args...)
	}
	return nil
}

func (c fakeConn) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if c.selectFn != nil {
		return c.selectFn(ctx, dest, query, args...)
	}
	return nil
}

func (c fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.execFn != nil {
		return c.execFn(ctx, query, args...)
	}
	return fakeResult{rows: 1}, nil
}

type statement struct {
	query string
	args  []any
}

// recordExec returns a conn whose ExecContext appends to the returned log.
func recordExec() (fakeConn, *[]statement) {
	var log []statement
	conn := fakeConn{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			log = append(log, statement{query: query, args: args})
			return fakeResult{rows: 1}, nil
		},
	}
	return conn, &log
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, r.err }

func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakePool is a scripted postgres.Pool. Exec calls are recorded; query
// results are served from queued rows.
type fakePool struct {
	execs        []execCall
	execErrAt    map[int]error
	rowsAffected int64

	rowQueue  []fakeRow
	rowsQueue [][][]any
	queryErr  error
}

type execCall struct {
	sql  string
	args []any
}

func (p *fakePool) Ping(ctx context.Context) error { return nil }
func (p *fakePool) Close()                         {}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	idx := len(p.execs)
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if err := p.execErrAt[idx]; err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", p.rowsAffected)), nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	var data [][]any
	if len(p.rowsQueue) > 0 {
		data = p.rowsQueue[0]
		p.rowsQueue = p.rowsQueue[1:]
	}
	return &fakeRows{data: data}, nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(p.rowQueue) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := p.rowQueue[0]
	p.rowQueue = p.rowQueue[1:]
	return row
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignAll(dest, r.vals)
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	return assignAll(dest, r.data[r.pos-1])
}
func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func assignAll(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations, %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		if err := assign(d, vals[i]); err != nil {
			return fmt.Errorf("scan destination %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, val any) error {
	switch d := dest.(type) {
	case *[]byte:
		if val == nil {
			*d = nil
		} else {
			*d = []byte(val.(string))
		}
	case *string:
		*d = val.(string)
	case **string:
		if val == nil {
			*d = nil
		} else {
			s := val.(string)
			*d = &s
		}
	case *int:
		*d = val.(int)
	case *int64:
		*d = val.(int64)
	case *float64:
		*d = val.(float64)
	case **float64:
		if val == nil {
			*d = nil
		} else {
			f := val.(float64)
			*d = &f
		}
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return nil
}

package directory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// fakeDB is an in-memory stand-in for the directory database. It records
// every query and serves canned rows, letting pool and lookup behavior be
// tested without a server.
type fakeDB struct {
	mu       sync.Mutex
	rows     [][]driver.Value
	queryErr error
	connects int
	queries  []string
	args     [][]driver.NamedValue
}

func (f *fakeDB) lastQuery() (string, []driver.NamedValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return "", nil
	}
	return f.queries[len(f.queries)-1], f.args[len(f.args)-1]
}

func (f *fakeDB) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeConnector struct{ db *fakeDB }

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	c.db.mu.Lock()
	c.db.connects++
	c.db.mu.Unlock()
	return &fakeConn{db: c.db}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, driver.ErrSkip }

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.mu.Lock()
	c.db.queries = append(c.db.queries, query)
	c.db.args = append(c.db.args, args)
	err := c.db.queryErr
	rows := c.db.rows
	c.db.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: rows}, nil
}

type fakeRows struct {
	rows [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string {
	return []string{"corp_id", "corp_name", "account_id", "cross_account_role_name", "assume_role_type", "external_id"}
}

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

// openFake wires a PoolManager to the fake database.
func openFake(db *fakeDB) func(string, string) (*sql.DB, error) {
	return func(_, _ string) (*sql.DB, error) {
		return sql.OpenDB(&fakeConnector{db: db}), nil
	}
}

package intrinsics

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fluence-lang/fluence/value"
)

// driverNames maps the short driver name a Fluence script passes to
// OpenConnection onto the database/sql driver name its blank import
// registered.
var driverNames = map[string]string{
	"mysql":    "mysql",
	"postgres": "postgres",
	"postgresql": "postgres",
	"sqlite":   "sqlite",
}

// DB is the "db" intrinsic library: SQL access over database/sql, backed
// by the blank-imported mysql/postgres/sqlite drivers. Grounded on the
// teacher's pkg/pdo driver-registry pattern, generalized from a
// PDO-shaped Conn/Stmt/Rows interface set to a thin Call(method, args)
// surface a host function call can dispatch through.
type DB struct {
	mu    sync.Mutex
	conns map[*sql.DB]struct{}
}

func NewDB() *DB {
	return &DB{conns: make(map[*sql.DB]struct{})}
}

func (*DB) Name() string { return "db" }

func (d *DB) Call(method string, args []value.RuntimeValue) (value.RuntimeValue, error) {
	switch method {
	case "OpenConnection":
		return d.openConnection(args)
	case "Query":
		return d.query(args)
	case "Exec":
		return d.exec(args)
	case "Close":
		return d.close(args)
	default:
		return value.RVNil, fmt.Errorf("db: unknown method %q", method)
	}
}

func (d *DB) openConnection(args []value.RuntimeValue) (value.RuntimeValue, error) {
	driverArg, err := stringArg(args, 0)
	if err != nil {
		return value.RVNil, err
	}
	dsn, err := stringArg(args, 1)
	if err != nil {
		return value.RVNil, err
	}
	driverName, ok := driverNames[driverArg]
	if !ok {
		return value.RVNil, fmt.Errorf("db: unknown driver %q", driverArg)
	}
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return value.RVNil, fmt.Errorf("db: open %s: %w", driverArg, err)
	}
	d.mu.Lock()
	d.conns[conn] = struct{}{}
	d.mu.Unlock()
	return value.NewRVObject(&value.UserWrapperObject{Host: conn}), nil
}

func connArg(args []value.RuntimeValue, i int) (*sql.DB, error) {
	if i >= len(args) || args[i].Kind != value.RObject {
		return nil, fmt.Errorf("db: argument %d is not a connection", i)
	}
	wrapper, ok := args[i].Obj.(*value.UserWrapperObject)
	if !ok {
		return nil, fmt.Errorf("db: argument %d is not a connection", i)
	}
	conn, ok := wrapper.Host.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("db: argument %d is not a db connection", i)
	}
	return conn, nil
}

func queryParams(args []value.RuntimeValue) ([]any, error) {
	params := make([]any, 0, len(args))
	for _, a := range args {
		p, err := rvToGo(a)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// query runs args[1] as a SQL query against connection args[0] with the
// remaining args as bind parameters, returning a list of row instances
// keyed by column name.
func (d *DB) query(args []value.RuntimeValue) (value.RuntimeValue, error) {
	conn, err := connArg(args, 0)
	if err != nil {
		return value.RVNil, err
	}
	queryText, err := stringArg(args, 1)
	if err != nil {
		return value.RVNil, err
	}
	params, err := queryParams(args[2:])
	if err != nil {
		return value.RVNil, err
	}
	rows, err := conn.Query(queryText, params...)
	if err != nil {
		return value.RVNil, fmt.Errorf("db: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return value.RVNil, fmt.Errorf("db: columns: %w", err)
	}

	list := value.GetList(0)
	scanDest := make([]any, len(columns))
	scanBuf := make([]any, len(columns))
	for i := range scanDest {
		scanDest[i] = &scanBuf[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return value.RVNil, fmt.Errorf("db: scan: %w", err)
		}
		fields := make(map[string]value.RuntimeValue, len(columns))
		for i, col := range columns {
			fields[col] = goToRV(scanBuf[i])
		}
		list.Elements = append(list.Elements, value.NewRVObject(&value.InstanceObject{TypeName: "Row", Fields: fields}))
	}
	if err := rows.Err(); err != nil {
		return value.RVNil, fmt.Errorf("db: rows: %w", err)
	}
	return value.NewRVObject(list), nil
}

// exec runs args[1] as a SQL statement against connection args[0],
// returning the number of rows affected.
func (d *DB) exec(args []value.RuntimeValue) (value.RuntimeValue, error) {
	conn, err := connArg(args, 0)
	if err != nil {
		return value.RVNil, err
	}
	queryText, err := stringArg(args, 1)
	if err != nil {
		return value.RVNil, err
	}
	params, err := queryParams(args[2:])
	if err != nil {
		return value.RVNil, err
	}
	result, err := conn.Exec(queryText, params...)
	if err != nil {
		return value.RVNil, fmt.Errorf("db: exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return value.RVNil, fmt.Errorf("db: rows affected: %w", err)
	}
	return value.NewRVInt64(affected), nil
}

func (d *DB) close(args []value.RuntimeValue) (value.RuntimeValue, error) {
	conn, err := connArg(args, 0)
	if err != nil {
		return value.RVNil, err
	}
	d.mu.Lock()
	delete(d.conns, conn)
	d.mu.Unlock()
	if err := conn.Close(); err != nil {
		return value.RVNil, fmt.Errorf("db: close: %w", err)
	}
	return value.RVNil, nil
}

// Package journal records calculator history in a SQL database so that it
// outlives the session.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Kinds of journal records.
const (
	KindEval    = "eval"
	KindAssign  = "assign"
	KindConvert = "convert"
)

// ddl holds the table definition for each supported driver.
var ddl = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS calc_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	kind TEXT NOT NULL,
	input TEXT NOT NULL,
	result TEXT NOT NULL
)`,
	"mysql": `CREATE TABLE IF NOT EXISTS calc_history (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	at BIGINT NOT NULL,
	kind VARCHAR(16) NOT NULL,
	input TEXT NOT NULL,
	result TEXT NOT NULL
)`,
	"postgres": `CREATE TABLE IF NOT EXISTS calc_history (
	id BIGSERIAL PRIMARY KEY,
	at BIGINT NOT NULL,
	kind VARCHAR(16) NOT NULL,
	input TEXT NOT NULL,
	result TEXT NOT NULL
)`,
}

// Record is one journaled history entry.
type Record struct {
	ID     int64
	At     time.Time
	Kind   string
	Input  string
	Result string
}

// Journal is a history journal backed by a database.
type Journal struct {
	db     *sql.DB
	insert string
	recent string
}

// Open connects to a database and ensures the journal table exists. driver
// is one of sqlite3, mysql, or postgres.
func Open(ctx context.Context, driver, dsn string) (*Journal, error) {
	create, ok := ddl[driver]
	if !ok {
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, create); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: creating table: %w", err)
	}
	j := Journal{
		db:     db,
		insert: "INSERT INTO calc_history (at, kind, input, result) VALUES (" + placeholders(driver, 4) + ")",
		recent: "SELECT id, at, kind, input, result FROM calc_history ORDER BY id DESC LIMIT " + placeholders(driver, 1),
	}
	return &j, nil
}

// placeholders returns a list of n query parameters in the driver's syntax.
func placeholders(driver string, n int) string {
	var s string
	for i := 1; i <= n; i++ {
		if i > 1 {
			s += ", "
		}
		if driver == "postgres" {
			s += "$" + strconv.Itoa(i)
		} else {
			s += "?"
		}
	}
	return s
}

// Append records a history entry.
func (j *Journal) Append(ctx context.Context, kind, input, result string) error {
	_, err := j.db.ExecContext(ctx, j.insert, time.Now().UnixNano(), kind, input, result)
	if err != nil {
		return fmt.Errorf("journal: appending: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest records, oldest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, j.recent, n)
	if err != nil {
		return nil, fmt.Errorf("journal: querying: %w", err)
	}
	defer rows.Close()
	var r []Record
	for rows.Next() {
		var (
			rec Record
			at  int64
		)
		if err := rows.Scan(&rec.ID, &at, &rec.Kind, &rec.Input, &rec.Result); err != nil {
			return nil, fmt.Errorf("journal: reading: %w", err)
		}
		rec.At = time.Unix(0, at)
		r = append(r, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: reading: %w", err)
	}
	for i, k := 0, len(r)-1; i < k; i, k = i+1, k-1 {
		r[i], r[k] = r[k], r[i]
	}
	return r, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

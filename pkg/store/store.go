// Package store persists session programs, adventure save codes and
// session records in a SQL database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
)

// Supported database/sql driver names.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
)

// ErrUnsupportedDriver is returned by Open for unknown driver names.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// dialect holds the per-driver differences in SQL text.
type dialect struct {
	keyType   string
	textType  string
	bigint    string
	placehold func(n int) string
	// createIf wraps a CREATE TABLE for drivers without IF NOT EXISTS.
	createIf func(table, body string) string
}

func createIfNotExists(table, body string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" + body + ")"
}

var dialects = map[string]dialect{
	DriverSQLite: {
		keyType: "TEXT", textType: "TEXT", bigint: "INTEGER",
		placehold: func(int) string { return "?" },
		createIf:  createIfNotExists,
	},
	DriverPostgres: {
		keyType: "TEXT", textType: "TEXT", bigint: "BIGINT",
		placehold: func(n int) string { return "$" + strconv.Itoa(n) },
		createIf:  createIfNotExists,
	},
	DriverMySQL: {
		keyType: "VARCHAR(64)", textType: "MEDIUMTEXT", bigint: "BIGINT",
		placehold: func(int) string { return "?" },
		createIf:  createIfNotExists,
	},
	DriverSQLServer: {
		keyType: "NVARCHAR(64)", textType: "NVARCHAR(MAX)", bigint: "BIGINT",
		placehold: func(n int) string { return "@p" + strconv.Itoa(n) },
		createIf: func(table, body string) string {
			return "IF OBJECT_ID(N'" + table + "', N'U') IS NULL CREATE TABLE " + table + " (" + body + ")"
		},
	},
}

// Store is a handle to the session database. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	driver  string
	dialect dialect
	now     func() time.Time
}

// Open connects to the database, verifies the connection and creates the
// tables if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, driver: driver, dialect: d, now: time.Now}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		if info, err := os.Stat(dsn); err == nil {
			logger.DatabaseInfo("opened sqlite database %s (%s)", dsn, humanize.Bytes(uint64(info.Size())))
		}
	} else {
		logger.DatabaseInfo("connected to %s database", driver)
	}
	return s, nil
}

// OpenFromConfig opens the database named in the [Database] section.
func OpenFromConfig(ctx context.Context) (*Store, error) {
	driver := configuration.GetString("Database", "driver", DriverSQLite)
	dsn := configuration.GetString("Database", "dsn", "workbench.db")
	return Open(ctx, driver, dsn)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// rebind rewrites ? placeholders for the active driver.
func (s *Store) rebind(query string) string {
	return rebind(query, s.dialect.placehold)
}

func rebind(query string, placehold func(int) string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(placehold(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) createTables(ctx context.Context) error {
	d := s.dialect
	tables := []struct{ name, body string }{
		{"programs", "session_id " + d.keyType + " NOT NULL, line_number INTEGER NOT NULL, source " + d.textType + " NOT NULL, PRIMARY KEY (session_id, line_number)"},
		{"adventure_saves", "session_id " + d.keyType + " PRIMARY KEY, code " + d.textType + " NOT NULL, saved_at " + d.bigint + " NOT NULL"},
		{"sessions", "session_id " + d.keyType + " PRIMARY KEY, remote_addr " + d.keyType + ", created_at " + d.bigint + " NOT NULL, last_seen " + d.bigint + " NOT NULL"},
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, d.createIf(t.name, t.body)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	return nil
}

// SaveProgram replaces the stored program of a session. An empty program
// removes all lines.
func (s *Store) SaveProgram(ctx context.Context, sessionID string, program map[int]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM programs WHERE session_id = ?"), sessionID); err != nil {
		return fmt.Errorf("failed to clear program: %w", err)
	}

	nums := make([]int, 0, len(program))
	for n := range program {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	insert := s.rebind("INSERT INTO programs (session_id, line_number, source) VALUES (?, ?, ?)")
	for _, n := range nums {
		if _, err := tx.ExecContext(ctx, insert, sessionID, n, program[n]); err != nil {
			return fmt.Errorf("failed to store line %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit program: %w", err)
	}
	logger.DatabaseDebug("saved %d program lines for session %s", len(nums), sessionID)
	return nil
}

// LoadProgram returns the stored program; a session without lines yields
// an empty map.
func (s *Store) LoadProgram(ctx context.Context, sessionID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT line_number, source FROM programs WHERE session_id = ?"), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query program: %w", err)
	}
	defer rows.Close()

	program := make(map[int]string)
	for rows.Next() {
		var (
			n   int
			src string
		)
		if err := rows.Scan(&n, &src); err != nil {
			return nil, fmt.Errorf("failed to scan program line: %w", err)
		}
		program[n] = src
	}
	return program, rows.Err()
}

// PutSave stores the latest adventure save code of a session.
func (s *Store) PutSave(ctx context.Context, sessionID, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM adventure_saves WHERE session_id = ?"), sessionID); err != nil {
		return fmt.Errorf("failed to clear save: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO adventure_saves (session_id, code, saved_at) VALUES (?, ?, ?)"),
		sessionID, code, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to store save: %w", err)
	}
	return tx.Commit()
}

// LatestSave returns the stored save code, or "" if there is none.
func (s *Store) LatestSave(ctx context.Context, sessionID string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT code FROM adventure_saves WHERE session_id = ?"), sessionID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query save: %w", err)
	}
	return code, nil
}

// TouchSession records activity for a session, creating it on first use.
func (s *Store) TouchSession(ctx context.Context, sessionID, remoteAddr string) error {
	now := s.now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM sessions WHERE session_id = ?"), sessionID).Scan(&n); err != nil {
		return fmt.Errorf("failed to query session: %w", err)
	}
	if n > 0 {
		_, err = tx.ExecContext(ctx, s.rebind("UPDATE sessions SET last_seen = ?, remote_addr = ? WHERE session_id = ?"), now, remoteAddr, sessionID)
	} else {
		_, err = tx.ExecContext(ctx, s.rebind("INSERT INTO sessions (session_id, remote_addr, created_at, last_seen) VALUES (?, ?, ?, ?)"),
			sessionID, remoteAddr, now, now)
	}
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return tx.Commit()
}

// SessionExists reports whether sessionID has been recorded.
func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM sessions WHERE session_id = ?"), sessionID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return n > 0, nil
}

// PurgeSessions removes sessions idle since before cutoff together with
// their programs and saves. It returns the number of sessions removed.
func (s *Store) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := cutoff.Unix()
	for _, table := range []string{"programs", "adventure_saves"} {
		q := "DELETE FROM " + table + " WHERE session_id IN (SELECT session_id FROM sessions WHERE last_seen < ?)"
		if _, err := tx.ExecContext(ctx, s.rebind(q), ts); err != nil {
			return 0, fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM sessions WHERE last_seen < ?"), ts)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	if n > 0 {
		logger.DatabaseInfo("purged %s idle session(s)", humanize.Comma(n))
	}
	return n, nil
}

// Stats counts rows per table.
type Stats struct {
	Sessions     int64
	ProgramLines int64
	Saves        int64
}

// Stats returns row counts for startup logging.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, c := range []struct {
		table string
		dst   *int64
	}{
		{"sessions", &st.Sessions},
		{"programs", &st.ProgramLines},
		{"adventure_saves", &st.Saves},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return st, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return st, nil
}

// String formats the counts with thousands separators.
func (st Stats) String() string {
	return fmt.Sprintf("%s session(s), %s program line(s), %s save(s)",
		humanize.Comma(st.Sessions), humanize.Comma(st.ProgramLines), humanize.Comma(st.Saves))
}

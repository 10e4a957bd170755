// Package statdb manages the relational cricket statistics database: a
// single PostgreSQL table of ball-by-ball IPL delivery data loaded from a
// tabular file, queried with LLM-synthesized SQL.
package statdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// TableName is the delivery data table.
const TableName = "ipl_deliveries"

// Schema describes the delivery table for LLM prompt grounding. The SQL
// synthesizer and the database-question classifier both embed it verbatim.
const Schema = `Table: ipl_deliveries
Columns:
- match_id: Match identifier
- inning: Inning number (1 or 2)
- batting_team: Team that is batting
- bowling_team: Team that is bowling
- over: Over number
- ball: Ball number within the over
- batter: Batsman's name
- bowler: Bowler's name
- non_striker: Non-striker's name
- batsman_runs: Runs scored by the batsman
- extra_runs: Extra runs (wides, no-balls, etc.)
- total_runs: Total runs in the delivery
- extras_type: Type of extra (wide, no-ball, etc.)
- is_wicket: Whether a wicket was taken (1 or 0)
- player_dismissed: Name of dismissed player
- dismissal_kind: Type of dismissal
- fielder: Fielder involved in dismissal`

// Config holds PostgreSQL connection parameters.
type Config struct {
	Name     string
	User     string
	Password string
	Host     string
	Port     string
	SSLMode  string
}

// DSN renders the config as a lib/pq connection string.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
}

// dsnFor returns a DSN targeting a different database on the same server.
func (c Config) dsnFor(dbname string) string {
	cc := c
	cc.Name = dbname
	return cc.DSN()
}

// queryTimeout bounds a single SQL execution.
const queryTimeout = 30 * time.Second

// DB wraps the statistics database connection.
type DB struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the statistics database and verifies the connection.
// The caller treats failure as "run without the database path".
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging stats database: %w", err)
	}

	return &DB{db: db, cfg: cfg}, nil
}

// EnsureDatabase creates the configured database if it does not exist,
// connecting through the maintenance database. Used by the loader CLI.
func EnsureDatabase(ctx context.Context, cfg Config) error {
	admin, err := sql.Open("postgres", cfg.dsnFor("postgres"))
	if err != nil {
		return fmt.Errorf("opening maintenance connection: %w", err)
	}
	defer admin.Close()

	var exists bool
	err = admin.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking database existence: %w", err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE cannot be parameterized; the name comes from
	// configuration, not user input.
	if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdent(cfg.Name))); err != nil {
		return fmt.Errorf("creating database %s: %w", cfg.Name, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Result holds the rows returned by a statistics query in rendered form.
type Result struct {
	Columns  []string
	Rows     [][]string
	RowCount int
}

// Query executes a synthesized SELECT statement and renders every value as
// text. Non-SELECT statements are rejected before reaching the server.
func (d *DB) Query(ctx context.Context, query string) (*Result, error) {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return nil, fmt.Errorf("only SELECT statements are allowed, got %q", firstWord(trimmed))
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols}
	raw := make([]sql.NullString, len(cols))
	scan := make([]interface{}, len(cols))
	for i := range raw {
		scan[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			if v.Valid {
				row[i] = v.String
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Render formats the result as an aligned text table for LLM context.
func (r *Result) Render() string {
	if r.RowCount == 0 {
		return "(no rows)"
	}

	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	for _, row := range r.Rows {
		for i, v := range row {
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, v := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(v)
			b.WriteString(strings.Repeat(" ", widths[i]-len(v)))
		}
		b.WriteByte('\n')
	}
	writeRow(r.Columns)
	for _, row := range r.Rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), " \n")
}

// FormatAnswer renders a query result as a Q&A context passage, matching
// the phrasing the answer generator expects.
func FormatAnswer(question string, r *Result) string {
	return fmt.Sprintf("The answer for the question '%s' is:\n%s", question, r.Render())
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i > 0 {
		return s[:i]
	}
	return s
}

// quoteIdent double-quotes a PostgreSQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

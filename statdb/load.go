package statdb

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
)

// integerColumns are the delivery table columns stored as INTEGER; all
// other columns are TEXT.
var integerColumns = map[string]bool{
	"match_id":     true,
	"inning":       true,
	"over":         true,
	"ball":         true,
	"batsman_runs": true,
	"extra_runs":   true,
	"total_runs":   true,
	"is_wicket":    true,
}

// indexColumns cover the common aggregation filters.
var indexColumns = []string{"match_id", "batter", "bowler", "batting_team"}

// LoadFile loads delivery data from a CSV or XLSX file, replacing any
// existing table contents. Returns the number of rows loaded.
func (d *DB) LoadFile(ctx context.Context, path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return d.LoadCSV(ctx, path)
	case ".xlsx", ".xls":
		return d.LoadXLSX(ctx, path)
	default:
		return 0, fmt.Errorf("unsupported stats file format: %s", filepath.Ext(path))
	}
}

// LoadCSV loads delivery data from a CSV file.
func (d *DB) LoadCSV(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = false

	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) < 1 {
		return 0, fmt.Errorf("csv file is empty")
	}

	return d.loadRecords(ctx, records[0], records[1:])
}

// LoadXLSX loads delivery data from the first sheet of an XLSX workbook.
func (d *DB) LoadXLSX(ctx context.Context, path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 1 {
		return 0, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	return d.loadRecords(ctx, rows[0], rows[1:])
}

// loadRecords recreates the delivery table from a header row and data rows,
// bulk-inserting via COPY and rebuilding the lookup indexes.
func (d *DB) loadRecords(ctx context.Context, header []string, rows [][]string) (int, error) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = sanitizeColumn(h)
		if cols[i] == "" {
			return 0, fmt.Errorf("column %d has an empty or invalid name %q", i, h)
		}
	}

	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+TableName); err != nil {
		return 0, fmt.Errorf("dropping old table: %w", err)
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := "TEXT"
		if integerColumns[c] {
			typ = "INTEGER"
		}
		defs[i] = quoteIdent(c) + " " + typ
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("creating table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(TableName, cols...))
	if err != nil {
		return 0, fmt.Errorf("preparing copy: %w", err)
	}

	var badValues int
	for n, row := range rows {
		vals := make([]interface{}, len(cols))
		for i := range cols {
			var raw string
			if i < len(row) {
				raw = strings.TrimSpace(row[i])
			}
			if raw == "" || strings.EqualFold(raw, "na") {
				vals[i] = nil
				continue
			}
			if integerColumns[cols[i]] {
				iv, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					// Tolerate dirty numeric cells: store NULL,
					// report the count after loading.
					badValues++
					vals[i] = nil
					continue
				}
				vals[i] = iv
				continue
			}
			vals[i] = raw
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copying row %d: %w", n+1, err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	for _, c := range indexColumns {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s ON %s(%s)", c, TableName, quoteIdent(c))
		if _, err := tx.ExecContext(ctx, idx); err != nil {
			return 0, fmt.Errorf("creating index on %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if badValues > 0 {
		slog.Warn("statdb: some numeric cells could not be parsed and were stored as NULL",
			"count", badValues)
	}
	slog.Info("statdb: delivery data loaded",
		"rows", len(rows), "columns", len(cols),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return len(rows), nil
}

// sanitizeColumn lowercases a header cell and strips everything that is not
// a letter, digit, or underscore, yielding a safe identifier.
func sanitizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

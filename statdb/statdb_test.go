package statdb

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Name:     "ipl_data",
		User:     "postgres",
		Password: "postgres",
		Host:     "localhost",
		Port:     "5432",
	}
	dsn := cfg.DSN()
	for _, want := range []string{
		"host=localhost", "port=5432", "user=postgres",
		"dbname=ipl_data", "sslmode=disable",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing %q: %s", want, dsn)
		}
	}
}

func TestResultRender(t *testing.T) {
	r := &Result{
		Columns:  []string{"batter", "total_runs"},
		Rows:     [][]string{{"V Kohli", "973"}, {"MS Dhoni", "209"}},
		RowCount: 2,
	}
	out := r.Render()
	if !strings.Contains(out, "batter") || !strings.Contains(out, "total_runs") {
		t.Errorf("rendered table missing header: %q", out)
	}
	if !strings.Contains(out, "V Kohli") {
		t.Errorf("rendered table missing row value: %q", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines (header + 2 rows), got %d: %q", len(lines), out)
	}
	// Columns are padded to a shared width.
	if !strings.Contains(lines[0], "batter  ") {
		t.Errorf("header not aligned: %q", lines[0])
	}
}

func TestResultRenderEmpty(t *testing.T) {
	r := &Result{Columns: []string{"batter"}}
	if got := r.Render(); got != "(no rows)" {
		t.Errorf("Render() = %q, want %q", got, "(no rows)")
	}
}

func TestFormatAnswer(t *testing.T) {
	r := &Result{
		Columns:  []string{"sum"},
		Rows:     [][]string{{"973"}},
		RowCount: 1,
	}
	got := FormatAnswer("How many runs did V Kohli score in 2016?", r)
	if !strings.HasPrefix(got, "The answer for the question 'How many runs did V Kohli score in 2016?' is:") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "973") {
		t.Errorf("answer missing value: %q", got)
	}
}

func TestSanitizeColumn(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"match_id", "match_id"},
		{"Match ID", "match_id"},
		{"batsman-runs", "batsman_runs"},
		{"  Over ", "over"},
		{"123abc", "_123abc"},
		{"drop;table", "droptable"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeColumn(tt.in); got != tt.want {
			t.Errorf("sanitizeColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`ipl"data`); got != `"ipl""data"` {
		t.Errorf("quoteIdent = %q", got)
	}
}

func TestFirstWord(t *testing.T) {
	if got := firstWord("DELETE FROM ipl_deliveries"); got != "DELETE" {
		t.Errorf("firstWord = %q, want DELETE", got)
	}
	if got := firstWord("select"); got != "select" {
		t.Errorf("firstWord = %q, want select", got)
	}
}

// Command loadstats creates the statistics database if needed and
// bulk-loads a deliveries file (CSV or XLSX) into it, replacing the
// existing table.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vmreddy/crickrag/statdb"
)

func main() {
	file := flag.String("file", "", "Path to the deliveries CSV or XLSX file")
	create := flag.Bool("create-db", false, "Create the database if it does not exist")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall timeout")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *file == "" {
		slog.Error("missing required -file flag")
		flag.Usage()
		os.Exit(2)
	}

	godotenv.Load()

	cfg := statdb.Config{
		Name:     envOr("DB_NAME", "ipl_data"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *create {
		if err := statdb.EnsureDatabase(ctx, cfg); err != nil {
			slog.Error("creating database", "name", cfg.Name, "error", err)
			os.Exit(1)
		}
	}

	db, err := statdb.Open(ctx, cfg)
	if err != nil {
		slog.Error("connecting to database", "host", cfg.Host, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	start := time.Now()
	rows, err := db.LoadFile(ctx, *file)
	if err != nil {
		slog.Error("loading file", "file", *file, "error", err)
		os.Exit(1)
	}

	slog.Info("load complete", "file", *file, "rows", rows,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

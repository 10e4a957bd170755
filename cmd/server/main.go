package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmreddy/crickrag"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// A missing .env file is fine; deployments use real env vars.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	cfg := crickrag.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	applyEnvOverrides(&cfg)

	apiKey := os.Getenv("CRICKRAG_API_KEY")
	corsOrigins := os.Getenv("CRICKRAG_CORS_ORIGINS")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := crickrag.New(ctx, cfg, slog.Default())
	cancel()
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("POST /loadstats", h.handleLoadStats)
	mux.HandleFunc("GET /documents", h.handleListDocuments)
	mux.HandleFunc("DELETE /documents/{id}", h.handleDeleteDocument)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Middleware chain: recovery -> cors -> auth -> request id -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ingest and stats loading can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "stats_db", engine.StatsAvailable())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnvOverrides layers environment variables over the file config.
// DB_* names match the statistics database convention; provider keys
// fall back to the well-known vendor variables.
func applyEnvOverrides(cfg *crickrag.Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&cfg.VectorDBPath, "CRICKRAG_VECTOR_DB_PATH")
	set(&cfg.StatsDB.Name, "DB_NAME")
	set(&cfg.StatsDB.User, "DB_USER")
	set(&cfg.StatsDB.Password, "DB_PASSWORD")
	set(&cfg.StatsDB.Host, "DB_HOST")
	set(&cfg.StatsDB.Port, "DB_PORT")
	set(&cfg.StatsDB.SSLMode, "DB_SSLMODE")

	set(&cfg.Chat.Provider, "CRICKRAG_CHAT_PROVIDER")
	set(&cfg.Chat.Model, "CRICKRAG_CHAT_MODEL")
	set(&cfg.Chat.BaseURL, "CRICKRAG_CHAT_BASE_URL")
	set(&cfg.Chat.APIKey, "CRICKRAG_CHAT_API_KEY")
	set(&cfg.Grading.Provider, "CRICKRAG_GRADING_PROVIDER")
	set(&cfg.Grading.Model, "CRICKRAG_GRADING_MODEL")
	set(&cfg.Grading.BaseURL, "CRICKRAG_GRADING_BASE_URL")
	set(&cfg.Grading.APIKey, "CRICKRAG_GRADING_API_KEY")
	set(&cfg.Embedding.Provider, "CRICKRAG_EMBED_PROVIDER")
	set(&cfg.Embedding.Model, "CRICKRAG_EMBED_MODEL")
	set(&cfg.Embedding.BaseURL, "CRICKRAG_EMBED_BASE_URL")
	set(&cfg.Embedding.APIKey, "CRICKRAG_EMBED_API_KEY")

	set(&cfg.Search.APIKey, "TAVILY_API_KEY")
	set(&cfg.RedisAddr, "REDIS_ADDR")
	set(&cfg.RedisPassword, "REDIS_PASSWORD")

	fallbackKey := func(c *crickrag.LLMConfig) {
		if c.APIKey != "" {
			return
		}
		switch c.Provider {
		case "openai":
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			c.APIKey = os.Getenv("GROQ_API_KEY")
		case "openrouter":
			c.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
	fallbackKey(&cfg.Chat)
	fallbackKey(&cfg.Grading)
	fallbackKey(&cfg.Embedding)
}

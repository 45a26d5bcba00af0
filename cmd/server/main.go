package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/historymind"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML, JSON or TOML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := historymind.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	// Fallback: check the well-known provider env var for the API key.
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	apiKey := os.Getenv("HISTORYMIND_API_KEY")
	corsOrigins := os.Getenv("HISTORYMIND_CORS_ORIGINS")

	engine, err := historymind.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      routes(engine, apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// routes builds the handler tree.
// Middleware chain: recovery -> cors -> auth -> request id -> logging -> mux
func routes(e historymind.Engine, apiKey, corsOrigins string) http.Handler {
	h := newHandler(e)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /answer", h.handleAnswer)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

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

	"github.com/joho/godotenv"

	fleetwise "github.com/dang-hang/fleet-wise-aide"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := fleetwise.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = fleetwise.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
	if v := os.Getenv("FLEETWISE_STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}
	if v := os.Getenv("FLEETWISE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLEETWISE_MANUALS_DIR"); v != "" {
		cfg.ManualsDir = v
	}
	if v := os.Getenv("FLEETWISE_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("FLEETWISE_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("FLEETWISE_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("FLEETWISE_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("FLEETWISE_VISION_PROVIDER"); v != "" {
		cfg.Vision.Provider = v
	}
	if v := os.Getenv("FLEETWISE_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}
	if v := os.Getenv("FLEETWISE_VISION_BASE_URL"); v != "" {
		cfg.Vision.BaseURL = v
	}
	if v := os.Getenv("FLEETWISE_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}

	// Fallback: check well-known provider env vars for API keys.
	cfg.Chat.APIKey = providerKeyFallback(cfg.Chat.Provider, cfg.Chat.APIKey)
	cfg.Vision.APIKey = providerKeyFallback(cfg.Vision.Provider, cfg.Vision.APIKey)

	apiKey := os.Getenv("FLEETWISE_API_KEY")
	corsOrigins := os.Getenv("FLEETWISE_CORS_ORIGINS")

	engine, err := fleetwise.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/query", h.handleQuery)
	mux.HandleFunc("POST /api/references", h.handleReferences)
	mux.HandleFunc("POST /api/answer", h.handleAnswer)
	mux.HandleFunc("GET /api/manuals", h.handleListManuals)
	mux.HandleFunc("GET /api/manuals/{id}", h.handleGetManual)
	mux.HandleFunc("DELETE /api/manuals/{id}", h.handleDeleteManual)
	mux.HandleFunc("POST /api/manuals/upload", h.handleUpload)
	mux.HandleFunc("POST /api/images/extract", h.handleExtractBatch)
	mux.HandleFunc("GET /api/images/extract/{manual}/{page}", h.handleExtractRegion)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ingestion uploads can run long
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

func providerKeyFallback(provider, key string) string {
	if key != "" {
		return key
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "xai":
		return os.Getenv("XAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return key
}

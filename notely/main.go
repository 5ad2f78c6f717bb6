package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notely/notely/config"
	"notely/notely/controllers"
	"notely/notely/routes"
	"notely/notely/services/llm"
	"notely/notely/sources/psql"
	"notely/notely/sources/psql/dao"
	"notely/notely/utils/logging"

	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.SupabaseJWTSecret == "" {
		logging.AppLogger.Warn("SUPABASE_JWT_SECRET is not set; every /notes request will be rejected")
	}
	summarizer, configured := newSummarizer(cfg)
	if !configured {
		logging.AppLogger.Warn("summarizer is not configured; /api/summarize will answer with an error",
			zap.String("provider", cfg.SummarizerProvider))
	}

	hub := controllers.NewEventHub()
	handler := routes.NewRouter(routes.Controllers{
		Notes:     controllers.NewNotesController(dao.NewNoteDAO(db.DB), hub),
		Events:    hub,
		Summarize: controllers.NewSummarizeController(summarizer, configured, cfg.SummarizeTimeout),
		Health:    controllers.NewHealthController(db.DB),
	}, cfg)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.AppLogger.Info("notely server listening", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
		return
	}
	logging.AppLogger.Info("server shutdown complete")
}

// newSummarizer picks the summarization backend. Groq needs an API key; a local
// Ollama server does not.
func newSummarizer(cfg config.Config) (llm.Summarizer, bool) {
	hc := &http.Client{Timeout: cfg.SummarizeTimeout}
	if cfg.SummarizerProvider == "ollama" {
		return llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, hc), true
	}
	return llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, hc), cfg.GroqAPIKey != ""
}

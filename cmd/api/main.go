package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"service-call-analyzer/internal/app"
	"service-call-analyzer/internal/config"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/server"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	a, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build analyzer")
	}
	defer a.Close()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: server.New(server.Options{
			Store:              a.Store,
			CustomAnalysisPath: cfg.CustomAnalysisPath,
			AudioDir:           cfg.AudioDir,
			Analyzer:           a.Analyzer,
			Metrics:            a.Metrics,
			Log:                log,
			AnalyzeTimeout:     cfg.TranscribeTimeout,
		}).Routes(),
		ReadTimeout: 15 * time.Second,
		// analyze blocks for the whole transcription
		WriteTimeout: cfg.TranscribeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).WithField("record_path", cfg.RecordPath).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stopped")
}

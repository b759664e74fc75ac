// Package main provides the standalone Atomic API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atomicedu/atomic-backend/internal/account"
	"github.com/atomicedu/atomic-backend/internal/chat"
	"github.com/atomicedu/atomic-backend/internal/config"
	"github.com/atomicedu/atomic-backend/internal/db"
	"github.com/atomicedu/atomic-backend/internal/llm"
	"github.com/atomicedu/atomic-backend/internal/metrics"
	"github.com/atomicedu/atomic-backend/internal/quiz"
	"github.com/atomicedu/atomic-backend/internal/server"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLogger() }()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dbClient, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("ATOMIC_WIPE_DB") == "true" {
		wipeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := dbClient.WipeData(wipeCtx)
		cancel()
		if err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Warn("database wiped on startup")
	}

	collector := metrics.NewCollector()

	gateway, err := llm.NewGateway(ctx, cfg, collector)
	if err != nil {
		logger.Error("failed to init model gateway", "error", err)
		os.Exit(1)
	}

	key, err := quiz.LoadKey(cfg.AnswerKeyPath)
	if err != nil {
		logger.Error("failed to load answer key", "path", cfg.AnswerKeyPath, "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Addr:      net.JoinHostPort("", cfg.Port),
		JWTSecret: cfg.JWTSecret,
		Turns:     chat.NewOrchestrator(dbClient, gateway, logger, collector, cfg.ModelTimeout),
		Model:     gateway,
		Tally:     quiz.NewTally(key, dbClient, logger),
		Cleanup:   account.NewCleaner(dbClient, logger),
		Reader:    dbClient,
		Collector: collector,
		Logger:    logger,
	})

	logger.Info("starting atomic-server",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel)

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

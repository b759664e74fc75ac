package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomicedu/atomic-backend/internal/account"
	"github.com/atomicedu/atomic-backend/internal/chat"
	"github.com/atomicedu/atomic-backend/internal/config"
	"github.com/atomicedu/atomic-backend/internal/llm"
	"github.com/atomicedu/atomic-backend/internal/metrics"
	"github.com/atomicedu/atomic-backend/internal/quiz"
	"github.com/atomicedu/atomic-backend/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Atomic API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		defer func() { _ = closeLogger() }()

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		collector := metrics.NewCollector()

		gateway, err := llm.NewGateway(ctx, cfg, collector)
		if err != nil {
			return fmt.Errorf("init model gateway: %w", err)
		}

		key, err := quiz.LoadKey(cfg.AnswerKeyPath)
		if err != nil {
			return fmt.Errorf("load answer key: %w", err)
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

		logger.Info("atomic server starting",
			"version", Version,
			"port", cfg.Port,
			"provider", cfg.LLMProvider,
			"model", cfg.LLMModel)

		return srv.Start(ctx)
	},
}

// Package server exposes the HTTP API: chat turns, OCR extraction, quiz
// tallying, translation, account deletion, the session watch stream, and
// operational endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atomicedu/atomic-backend/internal/account"
	"github.com/atomicedu/atomic-backend/internal/chat"
	"github.com/atomicedu/atomic-backend/internal/llm"
	"github.com/atomicedu/atomic-backend/internal/metrics"
	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/atomicedu/atomic-backend/internal/quiz"
)

// TurnService runs the conversation turn pipeline.
type TurnService interface {
	ProcessTurn(ctx context.Context, userID string, input chat.TurnInput) (string, error)
}

// ModelService covers the stateless model operations.
type ModelService interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
	Translate(ctx context.Context, text, targetLanguage string) (llm.Translation, error)
}

// TallyService scores quiz submissions.
type TallyService interface {
	Score(ctx context.Context, userID, authName, fallbackName string, answers []quiz.Answer) (*quiz.Result, error)
}

// CleanupService runs the account deletion cascade.
type CleanupService interface {
	DeleteUserData(ctx context.Context, userID string) (*account.Summary, error)
}

// TurnReader serves the session watch stream.
type TurnReader interface {
	SessionTurns(ctx context.Context, userID string, limit int) ([]models.Turn, error)
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	turns     TurnService
	model     ModelService
	tally     TallyService
	cleanup   CleanupService
	reader    TurnReader
	collector *metrics.Collector
	logger    *slog.Logger
	jwtSecret []byte

	http *http.Server
}

// Options carries the server's dependencies.
type Options struct {
	Addr      string
	JWTSecret string
	Turns     TurnService
	Model     ModelService
	Tally     TallyService
	Cleanup   CleanupService
	Reader    TurnReader
	Collector *metrics.Collector
	Logger    *slog.Logger
}

// New creates the server and its route table.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		turns:     opts.Turns,
		model:     opts.Model,
		tally:     opts.Tally,
		cleanup:   opts.Cleanup,
		reader:    opts.Reader,
		collector: opts.Collector,
		logger:    logger,
		jwtSecret: []byte(opts.JWTSecret),
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(s.logger))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(s.jwtSecret))
		r.Post("/chat/turns", s.handleChatTurn)
		r.Post("/ocr/extract", s.handleExtract)
		r.Post("/quiz/tally", s.handleTally)
		r.Post("/translate", s.handleTranslate)
		r.Delete("/account", s.handleDeleteAccount)
		r.Get("/session/watch", s.handleWatch)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Handler returns the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the context is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/atomicedu/atomic-backend/internal/apperr"
	"github.com/atomicedu/atomic-backend/internal/db"
	"github.com/atomicedu/atomic-backend/internal/metrics"
	"github.com/atomicedu/atomic-backend/internal/models"
)

// apologyText is the fixed user-facing content of a failed assistant turn.
// Product-visible: clients render it in place of the reply, so a failed turn
// is never invisible or stuck.
const apologyText = "Sorry, an error occurred while processing your message."

// fallbackText replaces an empty model response.
const fallbackText = "Sorry, I could not generate a response."

// Store is the persistence surface the turn pipeline needs. *db.Client
// satisfies it; tests substitute fakes.
type Store interface {
	AppendTurn(ctx context.Context, userID string, in db.TurnInput) (*models.Turn, error)
	ResolveTurn(ctx context.Context, turnID, status, content string) (*models.Turn, error)
	RecentTurns(ctx context.Context, userID string, limit int, excludeImageTurns bool) ([]models.Turn, error)
	ApplySessionDelta(ctx context.Context, userID string, delta int) (*models.Session, error)
}

// Gateway is the model collaborator invoked with an assembled message list.
type Gateway interface {
	Complete(ctx context.Context, messages []llms.MessageContent) (string, error)
}

// TurnInput is one incoming user turn.
type TurnInput struct {
	Content   string
	Image     []byte
	ImageMime string
	Modality  string
}

// Orchestrator coordinates one conversation turn: persist the user turn,
// create the assistant placeholder, assemble context, invoke the model, and
// resolve the placeholder to a terminal status. All collaborators are
// injected; the orchestrator holds no global state.
type Orchestrator struct {
	store        Store
	gateway      Gateway
	builder      *Builder
	logger       *slog.Logger
	collector    *metrics.Collector
	modelTimeout time.Duration
}

// NewOrchestrator creates a turn orchestrator. The collector is optional.
func NewOrchestrator(store Store, gateway Gateway, logger *slog.Logger, collector *metrics.Collector, modelTimeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if modelTimeout <= 0 {
		modelTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		store:        store,
		gateway:      gateway,
		builder:      NewBuilder(store),
		logger:       logger,
		collector:    collector,
		modelTimeout: modelTimeout,
	}
}

// ProcessTurn runs the full turn pipeline and returns the assistant turn's ID.
//
// The placeholder handle is threaded explicitly: nil until step 2 succeeds,
// checked before the compensating resolve. Every code path after the
// placeholder exists resolves it exactly once - on failure to "error" with
// the apology text - so no call ever returns with a turn left in
// "processing". Failures before the placeholder exists propagate without
// compensation: there is nothing user-visible to clean up.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID string, input TurnInput) (string, error) {
	if userID == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "caller identity required")
	}
	switch input.Modality {
	case models.ModalityText:
		if input.Content == "" {
			return "", apperr.New(apperr.CodeInvalidArgument, "message content required")
		}
	case models.ModalityImage:
		if len(input.Image) == 0 {
			return "", apperr.New(apperr.CodeInvalidArgument, "image payload required")
		}
	default:
		return "", apperr.Newf(apperr.CodeInvalidArgument, "unknown modality %q", input.Modality)
	}

	// Step 1: persist the user turn.
	_, err := o.appendTurn(ctx, userID, db.TurnInput{
		Content:  input.Content,
		Modality: input.Modality,
		IsUser:   true,
		Status:   models.StatusDelivered,
		WasImage: input.Modality == models.ModalityImage,
	})
	if err != nil {
		o.logger.Error("append user turn failed", "user", userID, "error", err)
		return "", apperr.Internal("failed to record message", err)
	}

	// Step 2: create the assistant placeholder. From here on, placeholder
	// is non-nil and must be resolved before returning.
	placeholder, err := o.appendTurn(ctx, userID, db.TurnInput{
		Content:  "",
		Modality: models.ModalityText,
		IsUser:   false,
		Status:   models.StatusProcessing,
	})
	if err != nil {
		o.logger.Error("append placeholder failed", "user", userID, "error", err)
		return "", apperr.Internal("failed to start response", err)
	}
	placeholderID := models.MustRecordIDString(placeholder.ID)

	// Steps 3-4: assemble context and invoke the model under a deadline.
	messages, err := o.builder.BuildContext(ctx, userID, input)
	if err != nil {
		o.logger.Error("build context failed", "user", userID, "error", err)
		return "", o.failTurn(ctx, placeholderID, apperr.Internal("failed to assemble context", err))
	}

	modelCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	response, err := o.gateway.Complete(modelCtx, messages)
	cancel()
	if err != nil {
		o.logger.Error("model call failed", "user", userID, "turn", placeholderID, "error", err)
		return "", o.failTurn(ctx, placeholderID, apperr.Internal("model call failed", err))
	}
	if response == "" {
		response = fallbackText
	}

	// Step 5: resolve the placeholder and apply the rollup delta.
	if _, err := o.store.ResolveTurn(ctx, placeholderID, models.StatusCompleted, response); err != nil {
		o.logger.Error("resolve placeholder failed", "user", userID, "turn", placeholderID, "error", err)
		return "", o.failTurn(ctx, placeholderID, apperr.Internal("failed to record response", err))
	}

	// Best-effort bookkeeping: the counter is cosmetic, so a transient
	// increment failure never fails a turn that already succeeded.
	if _, err := o.store.ApplySessionDelta(ctx, userID, 2); err != nil {
		o.logger.Warn("session rollup update failed", "user", userID, "error", err)
	}

	return placeholderID, nil
}

// failTurn resolves the placeholder to "error" with the apology text and
// returns the original error for the caller. The compensating write uses a
// context detached from the caller's deadline: a turn that failed on timeout
// must still end in a terminal status.
func (o *Orchestrator) failTurn(ctx context.Context, placeholderID string, cause error) error {
	resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := o.store.ResolveTurn(resolveCtx, placeholderID, models.StatusError, apologyText); err != nil {
		o.logger.Error("failed to mark turn as errored", "turn", placeholderID, "error", err)
	}
	return cause
}

func (o *Orchestrator) appendTurn(ctx context.Context, userID string, in db.TurnInput) (*models.Turn, error) {
	start := time.Now()
	turn, err := o.store.AppendTurn(ctx, userID, in)
	if o.collector != nil {
		o.collector.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
	return turn, err
}

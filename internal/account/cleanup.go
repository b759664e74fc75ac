// Package account implements the user data deletion cascade.
package account

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/atomicedu/atomic-backend/internal/apperr"
)

// turnBatchSize bounds each turn deletion batch so a long history never
// produces one oversized query.
const turnBatchSize = 100

// Store is the persistence surface the cascade needs.
type Store interface {
	DeleteSessionTurns(ctx context.Context, userID string, batchSize int) (int, error)
	DeleteSession(ctx context.Context, userID string) (int, error)
	DeleteLeaderboardEntry(ctx context.Context, userID string) (int, error)
}

// Summary reports what one cascade removed. All zeros for a user with no data.
type Summary struct {
	TurnsDeleted       int `json:"turns_deleted"`
	SessionsDeleted    int `json:"sessions_deleted"`
	LeaderboardDeleted int `json:"leaderboard_deleted"`
}

// Cleaner removes all records belonging to a user.
type Cleaner struct {
	store  Store
	logger *slog.Logger
}

// NewCleaner creates a deletion cascade over the given store.
func NewCleaner(store Store, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{store: store, logger: logger}
}

// DeleteUserData removes the user's turns, session record, and leaderboard
// record. Turns go first, in bounded batches, so a partial failure never
// leaves orphaned turns behind a deleted session record; the session and
// leaderboard deletions then run concurrently. Idempotent: re-running after
// a partial failure resumes where the last run stopped, and a user with no
// data yields an all-zero summary.
func (c *Cleaner) DeleteUserData(ctx context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "caller identity required")
	}

	turns, err := c.store.DeleteSessionTurns(ctx, userID, turnBatchSize)
	if err != nil {
		c.logger.Error("turn deletion failed", "user", userID, "deleted", turns, "error", err)
		return nil, apperr.Internal("failed to delete conversation history", err)
	}

	var summary Summary
	summary.TurnsDeleted = turns

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.store.DeleteSession(gctx, userID)
		summary.SessionsDeleted = n
		return err
	})
	g.Go(func() error {
		n, err := c.store.DeleteLeaderboardEntry(gctx, userID)
		summary.LeaderboardDeleted = n
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("record deletion failed", "user", userID, "error", err)
		return nil, apperr.Internal("failed to delete account records", err)
	}

	c.logger.Info("account data deleted",
		"user", userID,
		"turns", summary.TurnsDeleted,
		"sessions", summary.SessionsDeleted,
		"leaderboard", summary.LeaderboardDeleted)

	return &summary, nil
}

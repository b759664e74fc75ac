package db

import (
	"context"
	"fmt"

	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// ApplySessionDelta upserts the user's session rollup: last_interaction is set
// to now and total_turns is incremented by delta. The increment happens
// store-side in a single statement, so concurrent turns for the same session
// never lose updates. Merge-style: no other session field is touched.
func (c *Client) ApplySessionDelta(ctx context.Context, userID string, delta int) (*models.Session, error) {
	sql := `
		UPSERT type::record("session", $user) SET
			last_interaction = time::now(),
			total_turns += $delta
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Session](ctx, c.db, sql, map[string]any{
		"user":  userID,
		"delta": delta,
	})
	if err != nil {
		return nil, fmt.Errorf("apply session delta: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("apply session delta: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetSession retrieves the user's session rollup. Returns ErrNotFound if the
// user has never chatted.
func (c *Client) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		SELECT * FROM type::record("session", $user)
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get session %s: %w", userID, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// DeleteSession removes the user's session record. Returns the number of
// deleted records (0 if absent - idempotent). Turns must already be gone:
// callers delete them first so no orphans survive the session record.
func (c *Client) DeleteSession(ctx context.Context, userID string) (int, error) {
	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		DELETE type::record("session", $user) RETURN BEFORE
	`, map[string]any{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

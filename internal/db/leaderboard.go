package db

import (
	"context"
	"fmt"

	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// AddPoints applies earned quiz points to the user's leaderboard record inside
// an explicit transaction: the current score is read and the new score written
// atomically, so concurrent submissions from the same user never lose updates.
// Returns the record after the update.
func (c *Client) AddPoints(ctx context.Context, userID string, points int, displayName string) (*models.LeaderboardEntry, error) {
	sql := `
		BEGIN TRANSACTION;
		UPSERT type::record("leaderboard", $user) SET
			points += $points,
			display_name = $name,
			last_updated = time::now()
		RETURN AFTER;
		COMMIT TRANSACTION;
	`

	results, err := surrealdb.Query[[]models.LeaderboardEntry](ctx, c.db, sql, map[string]any{
		"user":   userID,
		"points": points,
		"name":   displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("add points: %w", wrapQueryError(err))
	}

	// BEGIN/COMMIT contribute empty result slots; pick the UPSERT's.
	if results != nil {
		for _, r := range *results {
			if len(r.Result) > 0 {
				return &r.Result[0], nil
			}
		}
	}
	return nil, fmt.Errorf("add points: no result returned")
}

// GetLeaderboardEntry retrieves the user's leaderboard record. Returns
// ErrNotFound if the user has never tallied answers.
func (c *Client) GetLeaderboardEntry(ctx context.Context, userID string) (*models.LeaderboardEntry, error) {
	results, err := surrealdb.Query[[]models.LeaderboardEntry](ctx, c.db, `
		SELECT * FROM type::record("leaderboard", $user)
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("get leaderboard entry: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get leaderboard entry %s: %w", userID, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// DeleteLeaderboardEntry removes the user's leaderboard record. Returns the
// number of deleted records (0 if absent - idempotent).
func (c *Client) DeleteLeaderboardEntry(ctx context.Context, userID string) (int, error) {
	results, err := surrealdb.Query[[]models.LeaderboardEntry](ctx, c.db, `
		DELETE type::record("leaderboard", $user) RETURN BEFORE
	`, map[string]any{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("delete leaderboard entry: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

package db

import (
	"context"
	"fmt"

	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// TurnInput describes a turn to append to a session's log.
type TurnInput struct {
	Content  string
	Modality string
	IsUser   bool
	Status   string
	WasImage bool
}

// AppendTurn appends a turn to the user's session log and returns the created
// record. The session record itself is not touched; rollup metadata changes
// only through ApplySessionDelta.
func (c *Client) AppendTurn(ctx context.Context, userID string, in TurnInput) (*models.Turn, error) {
	sql := `
		CREATE turn SET
			session = type::record("session", $user),
			content = $content,
			modality = $modality,
			is_user = $is_user,
			status = $status,
			was_image = $was_image
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, sql, map[string]any{
		"user":      userID,
		"content":   in.Content,
		"modality":  in.Modality,
		"is_user":   in.IsUser,
		"status":    in.Status,
		"was_image": in.WasImage,
	})
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("append turn: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// ResolveTurn transitions a turn out of "processing" into a terminal status,
// setting its content. The WHERE guard makes terminal statuses immutable: a
// turn already completed or errored matches nothing and ErrAlreadyResolved is
// returned, so a placeholder can never be resolved twice or regress.
func (c *Client) ResolveTurn(ctx context.Context, turnID, status, content string) (*models.Turn, error) {
	if status != models.StatusCompleted && status != models.StatusError {
		return nil, fmt.Errorf("resolve turn: %q is not a terminal status", status)
	}

	sql := `
		UPDATE type::record("turn", $id) SET
			status = $status,
			content = $content
		WHERE status = "processing"
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, sql, map[string]any{
		"id":      turnID,
		"status":  status,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve turn: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("resolve turn %s: %w", turnID, ErrAlreadyResolved)
	}
	return &(*results)[0].Result[0], nil
}

// GetTurn retrieves a turn by ID. Returns ErrNotFound for an unknown turn.
func (c *Client) GetTurn(ctx context.Context, turnID string) (*models.Turn, error) {
	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
		SELECT * FROM type::record("turn", $id)
	`, map[string]any{"id": turnID})
	if err != nil {
		return nil, fmt.Errorf("get turn: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get turn %s: %w", turnID, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// RecentTurns returns up to limit turns for the user's session, newest first.
// Unresolved placeholders are never returned: context assembly must not see a
// turn that is still processing. With excludeImageTurns set, turns flagged
// was_image are filtered before the limit is applied, so the window is always
// filled from text history.
func (c *Client) RecentTurns(ctx context.Context, userID string, limit int, excludeImageTurns bool) ([]models.Turn, error) {
	imageClause := ""
	if excludeImageTurns {
		imageClause = "AND was_image = false"
	}

	sql := fmt.Sprintf(`
		SELECT * FROM turn
		WHERE session = type::record("session", $user)
			AND status != "processing" %s
		ORDER BY created DESC
		LIMIT $limit
	`, imageClause)

	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, sql, map[string]any{
		"user":  userID,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Turn{}, nil
	}
	return (*results)[0].Result, nil
}

// SessionTurns returns the newest limit turns for the user's session in
// chronological order. The window is anchored at the newest turn, so a
// session longer than the limit still surfaces fresh appends and placeholder
// resolutions. Used by the session watch stream.
func (c *Client) SessionTurns(ctx context.Context, userID string, limit int) ([]models.Turn, error) {
	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
		SELECT * FROM turn
		WHERE session = type::record("session", $user)
		ORDER BY created DESC
		LIMIT $limit
	`, map[string]any{"user": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("session turns: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Turn{}, nil
	}

	turns := (*results)[0].Result
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CountTurns returns the number of turn records in the user's session.
func (c *Client) CountTurns(ctx context.Context, userID string) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `
		SELECT count() AS count FROM turn
		WHERE session = type::record("session", $user)
		GROUP ALL
	`, map[string]any{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// DeleteSessionTurns deletes the session's turns in bounded batches and
// returns the number of deleted records. Batching keeps individual deletes
// small; the loop is idempotent and safe to re-run after partial completion.
func (c *Client) DeleteSessionTurns(ctx context.Context, userID string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	deleted := 0
	for {
		ids, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
			SELECT id, session, content, modality, is_user, status, was_image, created
			FROM turn
			WHERE session = type::record("session", $user)
			LIMIT $limit
		`, map[string]any{"user": userID, "limit": batchSize})
		if err != nil {
			return deleted, fmt.Errorf("enumerate turns: %w", wrapQueryError(err))
		}
		if ids == nil || len(*ids) == 0 || len((*ids)[0].Result) == 0 {
			return deleted, nil
		}

		batch := make([]any, 0, len((*ids)[0].Result))
		for _, t := range (*ids)[0].Result {
			batch = append(batch, t.ID)
		}

		results, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
			DELETE turn WHERE id IN $ids RETURN BEFORE
		`, map[string]any{"ids": batch})
		if err != nil {
			return deleted, fmt.Errorf("delete turn batch: %w", wrapQueryError(err))
		}
		if results != nil && len(*results) > 0 {
			deleted += len((*results)[0].Result)
		}
	}
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/tmc/langchaingo/llms"

	"github.com/atomicedu/atomic-backend/internal/db"
	"github.com/atomicedu/atomic-backend/internal/models"
)

// fakeStore is an in-memory Store mirroring the SurrealDB query semantics the
// pipeline relies on: newest-first reads, placeholder exclusion, image
// filtering, and single resolution of processing turns.
type fakeStore struct {
	turns               []models.Turn
	deltas              []int
	nextID              int
	failAppend          int // fail the nth append (1-based), 0 = never
	appendCalls         int
	resolveCompletedErr error
	deltaErr            error
}

func (f *fakeStore) AppendTurn(_ context.Context, userID string, in db.TurnInput) (*models.Turn, error) {
	f.appendCalls++
	if f.failAppend > 0 && f.appendCalls == f.failAppend {
		return nil, errors.New("store unavailable")
	}
	f.nextID++
	turn := models.Turn{
		ID:       surrealmodels.RecordID{Table: "turn", ID: fmt.Sprintf("t%d", f.nextID)},
		Session:  surrealmodels.RecordID{Table: "session", ID: userID},
		Content:  in.Content,
		Modality: in.Modality,
		IsUser:   in.IsUser,
		Status:   in.Status,
		WasImage: in.WasImage,
		Created:  time.Unix(int64(f.nextID), 0),
	}
	f.turns = append(f.turns, turn)
	return &turn, nil
}

func (f *fakeStore) ResolveTurn(_ context.Context, turnID, status, content string) (*models.Turn, error) {
	if status == models.StatusCompleted && f.resolveCompletedErr != nil {
		return nil, f.resolveCompletedErr
	}
	for i := range f.turns {
		if f.turns[i].ID.ID == turnID {
			if f.turns[i].Status != models.StatusProcessing {
				return nil, db.ErrAlreadyResolved
			}
			f.turns[i].Status = status
			f.turns[i].Content = content
			return &f.turns[i], nil
		}
	}
	return nil, db.ErrAlreadyResolved
}

func (f *fakeStore) RecentTurns(_ context.Context, _ string, limit int, excludeImageTurns bool) ([]models.Turn, error) {
	out := make([]models.Turn, 0, limit)
	for i := len(f.turns) - 1; i >= 0 && len(out) < limit; i-- {
		t := f.turns[i]
		if t.Status == models.StatusProcessing {
			continue
		}
		if excludeImageTurns && t.WasImage {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ApplySessionDelta(_ context.Context, userID string, delta int) (*models.Session, error) {
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	f.deltas = append(f.deltas, delta)
	total := 0
	for _, d := range f.deltas {
		total += d
	}
	return &models.Session{
		ID:         surrealmodels.RecordID{Table: "session", ID: userID},
		TotalTurns: int64(total),
	}, nil
}

// findTurn returns the stored turn with the given ID, or nil.
func (f *fakeStore) findTurn(turnID string) *models.Turn {
	for i := range f.turns {
		if f.turns[i].ID.ID == turnID {
			return &f.turns[i]
		}
	}
	return nil
}

// fakeGateway captures the assembled messages and returns a canned response.
type fakeGateway struct {
	response string
	err      error
	messages []llms.MessageContent
	calls    int
}

func (f *fakeGateway) Complete(_ context.Context, messages []llms.MessageContent) (string, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// textOf extracts the text parts of a message for assertions.
func textOf(m llms.MessageContent) string {
	out := ""
	for _, p := range m.Parts {
		if tp, ok := p.(llms.TextContent); ok {
			out += tp.Text
		}
	}
	return out
}

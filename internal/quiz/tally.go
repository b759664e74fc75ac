package quiz

import (
	"context"
	"log/slog"

	"github.com/atomicedu/atomic-backend/internal/apperr"
	"github.com/atomicedu/atomic-backend/internal/models"
)

// pointsPerCorrect is the score awarded for each correct answer.
const pointsPerCorrect = 1000

// Store is the leaderboard surface the tally needs.
type Store interface {
	AddPoints(ctx context.Context, userID string, points int, displayName string) (*models.LeaderboardEntry, error)
}

// Answer is one submitted question/answer pair.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// Result reports the outcome of one tally.
type Result struct {
	PointsEarned int   `json:"points_earned"`
	Correct      int   `json:"correct"`
	Total        int   `json:"total"`
	TotalPoints  int64 `json:"total_points"`
}

// Tally scores answer submissions and credits the leaderboard.
type Tally struct {
	key    Key
	store  Store
	logger *slog.Logger
}

// NewTally creates a tally service over the given answer key and store.
func NewTally(key Key, store Store, logger *slog.Logger) *Tally {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tally{key: key, store: store, logger: logger}
}

// Score scores the submitted answers, credits 1000 points per correct answer
// to the user's leaderboard record, and returns the outcome. The display name
// prefers the authenticated name; fallbackName covers callers whose identity
// carries none. A submission with zero correct answers still touches the
// leaderboard record so the display name stays current.
func (t *Tally) Score(ctx context.Context, userID, authName, fallbackName string, answers []Answer) (*Result, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "caller identity required")
	}
	if len(answers) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "at least one answer required")
	}

	correct := 0
	for _, a := range answers {
		if a.QuestionID == "" {
			return nil, apperr.New(apperr.CodeInvalidArgument, "answer with empty question_id")
		}
		if t.key.Check(a.QuestionID, a.Answer) {
			correct++
		}
	}
	earned := correct * pointsPerCorrect

	name := authName
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		name = "Anonymous"
	}

	entry, err := t.store.AddPoints(ctx, userID, earned, name)
	if err != nil {
		t.logger.Error("leaderboard update failed", "user", userID, "error", err)
		return nil, apperr.Internal("failed to record score", err)
	}

	t.logger.Info("quiz tallied",
		"user", userID, "correct", correct, "total", len(answers), "earned", earned)

	return &Result{
		PointsEarned: earned,
		Correct:      correct,
		Total:        len(answers),
		TotalPoints:  entry.Points,
	}, nil
}

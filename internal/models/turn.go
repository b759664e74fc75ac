package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Turn lifecycle statuses. A turn only ever moves
// processing -> completed or processing -> error; terminal states are immutable.
const (
	StatusDelivered  = "delivered"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Turn modalities.
const (
	ModalityText  = "text"
	ModalityImage = "image"
)

// Turn is one persisted message (user or assistant) in a session's ordered
// history. Assistant turns are created as placeholders in StatusProcessing
// immediately after their user turn and resolved exactly once.
type Turn struct {
	ID       surrealmodels.RecordID `json:"id"`
	Session  surrealmodels.RecordID `json:"session"`
	Content  string                 `json:"content"`
	Modality string                 `json:"modality"`
	IsUser   bool                   `json:"is_user"`
	Status   string                 `json:"status"`
	// WasImage marks user turns that originated from an image. Such turns are
	// excluded from text-only context windows: the payload is expensive and
	// not meaningfully reusable as text context.
	WasImage bool      `json:"was_image"`
	Created  time.Time `json:"created"`
}

// Terminal reports whether the turn has reached an immutable status.
func (t *Turn) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusError
}

// Package models defines data structures for the Atomic chat backend.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Session is the per-user conversation aggregate. One session exists per user
// identity, created lazily on the first turn. Only rollup metadata lives here;
// the turns themselves are separate records.
type Session struct {
	ID              surrealmodels.RecordID `json:"id"`
	LastInteraction time.Time              `json:"last_interaction"`
	TotalTurns      int64                  `json:"total_turns"`
}

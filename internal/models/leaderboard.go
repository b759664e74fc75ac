package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// LeaderboardEntry is the per-user quiz score record.
type LeaderboardEntry struct {
	ID          surrealmodels.RecordID `json:"id"`
	Points      int64                  `json:"points"`
	DisplayName string                 `json:"display_name"`
	LastUpdated time.Time              `json:"last_updated"`
}

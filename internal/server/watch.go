package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atomicedu/atomic-backend/internal/models"
)

// watchPollInterval is the store polling cadence for the watch stream.
const watchPollInterval = 500 * time.Millisecond

// watchWindow bounds how many turns one snapshot carries.
const watchWindow = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// TurnSnapshot is one turn on the watch wire.
type TurnSnapshot struct {
	TurnID   string    `json:"turn_id"`
	Content  string    `json:"content"`
	Modality string    `json:"modality"`
	IsUser   bool      `json:"is_user"`
	Status   string    `json:"status"`
	Created  time.Time `json:"created"`
}

type watchMessage struct {
	Turns []TurnSnapshot `json:"turns"`
}

// handleWatch streams the caller's session turns over a websocket. The store
// is polled on a fixed cadence; a message is sent only when something changed
// since the last send, so clients observe each placeholder resolving to its
// terminal status without busy traffic in idle sessions.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: surfaces client disconnect while we only write.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	lastDigest := ""
	for {
		turns, err := s.reader.SessionTurns(r.Context(), identity.UserID, watchWindow)
		if err != nil {
			s.logger.Error("watch poll failed", "user", identity.UserID, "error", err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "store unavailable"),
				time.Now().Add(time.Second))
			return
		}

		snapshots := make([]TurnSnapshot, 0, len(turns))
		digest := ""
		for _, t := range turns {
			id, err := models.RecordIDString(t.ID)
			if err != nil {
				continue
			}
			snapshots = append(snapshots, TurnSnapshot{
				TurnID:   id,
				Content:  t.Content,
				Modality: t.Modality,
				IsUser:   t.IsUser,
				Status:   t.Status,
				Created:  t.Created,
			})
			digest += fmt.Sprintf("%s:%s;", id, t.Status)
		}

		if digest != lastDigest {
			if err := conn.WriteJSON(watchMessage{Turns: snapshots}); err != nil {
				return
			}
			lastDigest = digest
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

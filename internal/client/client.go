// Package client provides an HTTP client for the Atomic server, used by the
// CLI and the chat TUI.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to the Atomic HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given server.
// If baseURL is empty, uses ATOMIC_SERVER_URL env var or defaults to localhost:8585.
// Timeout can be configured via ATOMIC_CLIENT_TIMEOUT env var (default 5m, model
// calls included).
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ATOMIC_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 5 * time.Minute
	if t := os.Getenv("ATOMIC_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("server error (%s): %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// SendTurn submits a text chat turn and returns the assistant turn's ID.
func (c *Client) SendTurn(ctx context.Context, content string) (string, error) {
	var resp struct {
		TurnID string `json:"turn_id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/chat/turns", map[string]string{
		"content": content,
	}, &resp)
	return resp.TurnID, err
}

// SendImageTurn submits an image chat turn with optional caption text.
func (c *Client) SendImageTurn(ctx context.Context, image []byte, mime, caption string) (string, error) {
	if mime == "" {
		mime = "image/jpeg"
	}
	var resp struct {
		TurnID string `json:"turn_id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/chat/turns", map[string]string{
		"content":      caption,
		"image_base64": fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image)),
	}, &resp)
	return resp.TurnID, err
}

// ExtractText runs text extraction on an image.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/ocr/extract", map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString(image),
	}, &resp)
	return resp.Text, err
}

// Translation is one translation result.
type Translation struct {
	Text           string `json:"translated_text"`
	SourceLanguage string `json:"detected_source_language"`
}

// Translate translates text into the target language.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (Translation, error) {
	var resp Translation
	err := c.do(ctx, http.MethodPost, "/v1/translate", map[string]string{
		"text":            text,
		"target_language": targetLanguage,
	}, &resp)
	return resp, err
}

// QuizAnswer is one submitted answer.
type QuizAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// QuizResult reports one tally.
type QuizResult struct {
	PointsEarned int   `json:"points_earned"`
	Correct      int   `json:"correct"`
	Total        int   `json:"total"`
	TotalPoints  int64 `json:"total_points"`
}

// TallyQuiz submits quiz answers.
func (c *Client) TallyQuiz(ctx context.Context, answers []QuizAnswer, displayName string) (QuizResult, error) {
	var resp QuizResult
	err := c.do(ctx, http.MethodPost, "/v1/quiz/tally", map[string]any{
		"answers":      answers,
		"display_name": displayName,
	}, &resp)
	return resp, err
}

// DeleteAccount runs the deletion cascade for the authenticated user.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/account", nil, nil)
}

// Turn is one turn on the watch stream.
type Turn struct {
	TurnID   string    `json:"turn_id"`
	Content  string    `json:"content"`
	Modality string    `json:"modality"`
	IsUser   bool      `json:"is_user"`
	Status   string    `json:"status"`
	Created  time.Time `json:"created"`
}

type watchMessage struct {
	Turns []Turn `json:"turns"`
}

// Watch subscribes to the caller's session turn stream. The returned channel
// carries full snapshots, newest state last; it closes when the connection
// drops or ctx is canceled.
func (c *Client) Watch(ctx context.Context) (<-chan []Turn, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/v1/session/watch"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("watch: unauthorized")
		}
		return nil, fmt.Errorf("watch: %w", err)
	}

	updates := make(chan []Turn)
	go func() {
		defer close(updates)
		defer conn.Close()
		for {
			var msg watchMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case updates <- msg.Turns:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close the connection when the context ends so the reader unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return updates, nil
}

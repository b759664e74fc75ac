package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/atomicedu/atomic-backend/internal/account"
	"github.com/atomicedu/atomic-backend/internal/apperr"
	"github.com/atomicedu/atomic-backend/internal/chat"
	"github.com/atomicedu/atomic-backend/internal/llm"
	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/atomicedu/atomic-backend/internal/quiz"
)

const testSecret = "test-secret"

type fakeTurns struct {
	turnID string
	err    error
	userID string
	input  chat.TurnInput
}

func (f *fakeTurns) ProcessTurn(_ context.Context, userID string, input chat.TurnInput) (string, error) {
	f.userID = userID
	f.input = input
	if f.err != nil {
		return "", f.err
	}
	return f.turnID, nil
}

type fakeModel struct {
	text        string
	translation llm.Translation
	err         error
	image       []byte
	mime        string
}

func (f *fakeModel) ExtractText(_ context.Context, image []byte, mime string) (string, error) {
	f.image = image
	f.mime = mime
	return f.text, f.err
}

func (f *fakeModel) Translate(_ context.Context, _, _ string) (llm.Translation, error) {
	return f.translation, f.err
}

type fakeTally struct {
	result *quiz.Result
	err    error
}

func (f *fakeTally) Score(_ context.Context, _, _, _ string, _ []quiz.Answer) (*quiz.Result, error) {
	return f.result, f.err
}

type fakeCleanup struct {
	summary *account.Summary
	err     error
	userID  string
}

func (f *fakeCleanup) DeleteUserData(_ context.Context, userID string) (*account.Summary, error) {
	f.userID = userID
	return f.summary, f.err
}

type fakeReader struct {
	mu    sync.Mutex
	turns []models.Turn
}

func (f *fakeReader) SessionTurns(_ context.Context, _ string, _ int) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Turn, len(f.turns))
	copy(out, f.turns)
	return out, nil
}

func (f *fakeReader) set(turns []models.Turn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = turns
}

type testDeps struct {
	turns   *fakeTurns
	model   *fakeModel
	tally   *fakeTally
	cleanup *fakeCleanup
	reader  *fakeReader
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		turns:   &fakeTurns{turnID: "t42"},
		model:   &fakeModel{},
		tally:   &fakeTally{result: &quiz.Result{}},
		cleanup: &fakeCleanup{summary: &account.Summary{}},
		reader:  &fakeReader{},
	}
	s := New(Options{
		JWTSecret: testSecret,
		Turns:     deps.turns,
		Model:     deps.model,
		Tally:     deps.tally,
		Cleanup:   deps.cleanup,
		Reader:    deps.reader,
	})
	return s, deps
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthNoAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejections(t *testing.T) {
	s, deps := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/chat/turns", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/v1/chat/turns", "not-a-jwt", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong signing key.
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = doRequest(t, s, http.MethodPost, "/v1/chat/turns", bad, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid signature but no subject.
	rec = doRequest(t, s, http.MethodPost, "/v1/chat/turns", signToken(t, jwt.MapClaims{}), map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errCode(t, rec))

	// Token minted with the empty key. Startup validation forbids an empty
	// configured secret, and a configured server must reject such tokens.
	empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte(""))
	require.NoError(t, err)
	rec = doRequest(t, s, http.MethodPost, "/v1/chat/turns", empty, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// No auth failure ever reached a service.
	assert.Empty(t, deps.turns.userID)
}

func TestChatTurnText(t *testing.T) {
	s, deps := newTestServer(t)
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	rec := doRequest(t, s, http.MethodPost, "/v1/chat/turns", token, map[string]string{"content": "what is an ion?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t42", resp["turn_id"])
	assert.Equal(t, "alice", deps.turns.userID)
	assert.Equal(t, models.ModalityText, deps.turns.input.Modality)
}

func TestChatTurnImageDataURL(t *testing.T) {
	s, deps := newTestServer(t)
	token := signToken(t, jwt.MapClaims{"sub": "alice"})
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	rec := doRequest(t, s, http.MethodPost, "/v1/chat/turns", token, map[string]string{
		"image_base64": "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, models.ModalityImage, deps.turns.input.Modality)
	assert.Equal(t, payload, deps.turns.input.Image)
	assert.Equal(t, "image/png", deps.turns.input.ImageMime)
}

func TestChatTurnBadBodies(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/turns", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/v1/chat/turns", token, map[string]string{
		"image_base64": "%%%not-base64%%%",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", errCode(t, rec))
}

func TestChatTurnServiceError(t *testing.T) {
	s, deps := newTestServer(t)
	deps.turns.err = apperr.Internal("model call failed", errors.New("boom"))
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	rec := doRequest(t, s, http.MethodPost, "/v1/chat/turns", token, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", errCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestExtract(t *testing.T) {
	s, deps := newTestServer(t)
	deps.model.text = "2H2 + O2 -> 2H2O"
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	rec := doRequest(t, s, http.MethodPost, "/v1/ocr/extract", token, map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2H2 + O2 -> 2H2O", resp["text"])
	assert.Equal(t, []byte{1, 2, 3}, deps.model.image)

	rec = doRequest(t, s, http.MethodPost, "/v1/ocr/extract", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTally(t *testing.T) {
	s, deps := newTestServer(t)
	deps.tally.result = &quiz.Result{PointsEarned: 2000, Correct: 2, Total: 3, TotalPoints: 5000}
	token := signToken(t, jwt.MapClaims{"sub": "alice", "name": "Alice"})

	rec := doRequest(t, s, http.MethodPost, "/v1/quiz/tally", token, map[string]any{
		"answers": []map[string]string{{"question_id": "q1", "answer": "H2O"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp quiz.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2000, resp.PointsEarned)
	assert.Equal(t, int64(5000), resp.TotalPoints)
}

func TestTranslate(t *testing.T) {
	s, deps := newTestServer(t)
	deps.model.translation = llm.Translation{Text: "Hallo", SourceLanguage: "English"}
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	rec := doRequest(t, s, http.MethodPost, "/v1/translate", token, map[string]string{
		"text": "Hello", "target_language": "German",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hallo", resp["translated_text"])
	assert.Equal(t, "English", resp["detected_source_language"])

	rec = doRequest(t, s, http.MethodPost, "/v1/translate", token, map[string]string{"text": "Hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	s, deps := newTestServer(t)
	deps.cleanup.summary = &account.Summary{TurnsDeleted: 4, SessionsDeleted: 1, LeaderboardDeleted: 1}
	token := signToken(t, jwt.MapClaims{"sub": "alice"})

	rec := doRequest(t, s, http.MethodDelete, "/v1/account", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", deps.cleanup.userID)

	var resp account.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.TurnsDeleted)
}

func TestRequestIDEcho(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	rec = doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestWatchStreamsResolution(t *testing.T) {
	s, deps := newTestServer(t)
	turn := models.Turn{
		ID:       surrealmodels.RecordID{Table: "turn", ID: "t1"},
		Status:   models.StatusProcessing,
		Modality: models.ModalityText,
	}
	deps.reader.set([]models.Turn{turn})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	token := signToken(t, jwt.MapClaims{"sub": "alice"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session/watch"
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	var msg watchMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Turns, 1)
	assert.Equal(t, models.StatusProcessing, msg.Turns[0].Status)

	turn.Status = models.StatusCompleted
	turn.Content = "done"
	deps.reader.set([]models.Turn{turn})

	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Turns, 1)
	assert.Equal(t, models.StatusCompleted, msg.Turns[0].Status)
	assert.Equal(t, "done", msg.Turns[0].Content)
}

func TestWatchRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session/watch"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

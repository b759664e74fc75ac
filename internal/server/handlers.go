package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atomicedu/atomic-backend/internal/apperr"
	"github.com/atomicedu/atomic-backend/internal/chat"
	"github.com/atomicedu/atomic-backend/internal/models"
	"github.com/atomicedu/atomic-backend/internal/quiz"
)

// maxBodyBytes bounds request bodies; image payloads dominate the budget.
const maxBodyBytes = 12 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, apperr.HTTPStatus(code), map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": apperr.MessageOf(err),
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.CodeInvalidArgument, "malformed request body")
	}
	return nil
}

// decodeImage accepts raw base64 or a data URL and returns the payload with
// its MIME type ("" when the input carried none).
func decodeImage(input string) ([]byte, string, error) {
	mime := ""
	if rest, ok := strings.CutPrefix(input, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", apperr.New(apperr.CodeInvalidArgument, "malformed data URL")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		input = data
	}
	payload, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, "", apperr.New(apperr.CodeInvalidArgument, "invalid base64 image payload")
	}
	if len(payload) == 0 {
		return nil, "", apperr.New(apperr.CodeInvalidArgument, "empty image payload")
	}
	return payload, mime, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatTurnRequest struct {
	Content     string `json:"content"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	var req chatTurnRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	input := chat.TurnInput{Content: req.Content, Modality: models.ModalityText}
	if req.ImageBase64 != "" {
		image, mime, err := decodeImage(req.ImageBase64)
		if err != nil {
			writeError(w, err)
			return
		}
		input.Image = image
		input.ImageMime = mime
		input.Modality = models.ModalityImage
	}

	turnID, err := s.turns.ProcessTurn(r.Context(), identity.UserID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"turn_id": turnID})
}

type extractRequest struct {
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "image_base64 required"))
		return
	}
	image, mime, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := s.model.ExtractText(r.Context(), image, mime)
	if err != nil {
		s.logger.Error("text extraction failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeError(w, apperr.Internal("failed to extract text", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type tallyRequest struct {
	Answers     []quiz.Answer `json:"answers"`
	DisplayName string        `json:"display_name"`
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	var req tallyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.tally.Score(r.Context(), identity.UserID, identity.DisplayName, req.DisplayName, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == "" || req.TargetLanguage == "" {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "text and target_language required"))
		return
	}

	translation, err := s.model.Translate(r.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		s.logger.Error("translation failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeError(w, apperr.Internal("failed to translate", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"translated_text":          translation.Text,
		"detected_source_language": translation.SourceLanguage,
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	summary, err := s.cleanup.DeleteUserData(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, apperr.New(apperr.CodeNotFound, "metrics not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

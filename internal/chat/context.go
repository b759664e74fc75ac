// Package chat implements the conversation turn pipeline: context assembly,
// orchestration of the model call, and turn lifecycle resolution.
package chat

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/atomicedu/atomic-backend/internal/models"
)

// maxContextTurns bounds how many prior turns are sent to the model.
const maxContextTurns = 20

const systemPrompt = "You are Atomic, an AI chemistry teacher. You help students understand " +
	"chemistry concepts. Keep your answers focused on chemistry and educational. Your responses " +
	"should be clear and suitable for students."

// defaultImagePrompt accompanies an image when the caller supplied no text.
const defaultImagePrompt = "Please explain what is shown in this image."

// Builder assembles the bounded, filtered context window for a model call.
type Builder struct {
	store Store
}

// NewBuilder creates a context window builder over the given store.
func NewBuilder(store Store) *Builder {
	return &Builder{store: store}
}

// BuildContext shapes the model request for the current input.
//
// Image mode sends no history: the payload is the system instruction plus one
// user message carrying the image and its accompanying text. Image payloads
// are expensive and not reusable as text context, so they are never carried
// forward into later requests either.
//
// Text mode reads the recent persisted turns (the just-appended user turn
// included), drops image-originated turns entirely, reverses the
// newest-first query order, and prepends the system instruction. An empty
// filtered history is valid: the request is then just the instruction and the
// current turn.
func (b *Builder) BuildContext(ctx context.Context, userID string, input TurnInput) ([]llms.MessageContent, error) {
	if input.Modality == models.ModalityImage {
		text := input.Content
		if text == "" {
			text = defaultImagePrompt
		}
		mime := input.ImageMime
		if mime == "" {
			mime = "image/jpeg"
		}
		return []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			{
				Role: llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{
					llms.TextPart(text),
					llms.BinaryPart(mime, input.Image),
				},
			},
		}, nil
	}

	// The current user turn is already persisted, so the window is the
	// current turn plus up to maxContextTurns prior ones.
	history, err := b.store.RecentTurns(ctx, userID, maxContextTurns+1, true)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))

	// Store order is newest first; the model wants oldest first.
	for i := len(history) - 1; i >= 0; i-- {
		role := llms.ChatMessageTypeAI
		if history[i].IsUser {
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(role, history[i].Content))
	}

	return messages, nil
}

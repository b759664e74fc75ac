// Package llm wraps the hosted chat-completion model behind a small gateway.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/atomicedu/atomic-backend/internal/config"
	"github.com/atomicedu/atomic-backend/internal/metrics"
)

// Generation limits per call type, matching the product's model settings.
const (
	chatMaxTokens      = 500
	chatTemperature    = 0.7
	visionMaxTokens    = 1000
	translateMaxTokens = 1000
)

const extractionSystemPrompt = "You are a text extraction tool. Your only job is to read and return " +
	"the exact text from images. Do not add any explanations, descriptions, or additional context. " +
	"Just return the text exactly as it appears in the image."

const extractionUserPrompt = "Extract and return only the text from this image, exactly as it appears."

const translationSystemPrompt = "You are a translation engine. Translate the user's text into the " +
	"requested language. Reply with the detected source language code on the first line, then a line " +
	"containing only ---, then the translation. No commentary."

// Gateway is the request/response client for the hosted multimodal model.
// Constructed once per process and injected; tests substitute the chat-side
// interface defined by consumers.
type Gateway struct {
	llm       llms.Model
	modelName string
	collector *metrics.Collector
}

// NewGateway creates a model gateway based on configuration. The collector is
// optional; when set, call timings and token usage are recorded.
func NewGateway(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Gateway, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Gateway{llm: model, modelName: cfg.LLMModel, collector: collector}, nil
}

// Model returns the configured model name.
func (g *Gateway) Model() string {
	return g.modelName
}

// Complete invokes the chat model with an assembled message list and returns
// the response text. An empty choice list is an error; callers decide the
// user-facing fallback.
func (g *Gateway) Complete(ctx context.Context, messages []llms.MessageContent) (string, error) {
	return g.generate(ctx, metrics.OpLLMChat, messages,
		llms.WithTemperature(chatTemperature),
		llms.WithMaxTokens(chatMaxTokens),
	)
}

// ExtractText reads the exact text out of an image.
func (g *Gateway) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractionSystemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(extractionUserPrompt),
				llms.BinaryPart(mimeType, image),
			},
		},
	}

	return g.generate(ctx, metrics.OpLLMVision, messages, llms.WithMaxTokens(visionMaxTokens))
}

// Translation is the result of a Translate call.
type Translation struct {
	Text           string
	SourceLanguage string
}

// Translate passes text through the model into the target language.
func (g *Gateway) Translate(ctx context.Context, text, targetLanguage string) (Translation, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, translationSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Target language: %s\n\nText:\n%s", targetLanguage, text)),
	}

	raw, err := g.generate(ctx, metrics.OpLLMTranslate, messages, llms.WithMaxTokens(translateMaxTokens))
	if err != nil {
		return Translation{}, err
	}
	return parseTranslation(raw), nil
}

func (g *Gateway) generate(ctx context.Context, op string, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	start := time.Now()
	response, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	if g.collector != nil {
		g.collector.RecordLLMUsage(op, time.Since(start),
			tokenCount(choice.GenerationInfo, "PromptTokens"),
			tokenCount(choice.GenerationInfo, "CompletionTokens"))
	}

	return choice.Content, nil
}

// tokenCount extracts a token counter from provider generation info, which is
// untyped and provider-specific. Missing counters read as zero.
func tokenCount(info map[string]any, key string) int64 {
	switch v := info[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// parseTranslation splits the model reply into detected language and
// translated text. Models that skip the protocol yield the whole reply as the
// translation with no detected language.
func parseTranslation(raw string) Translation {
	before, after, found := strings.Cut(raw, "\n---\n")
	if !found {
		return Translation{Text: strings.TrimSpace(raw)}
	}
	return Translation{
		SourceLanguage: strings.TrimSpace(before),
		Text:           strings.TrimSpace(after),
	}
}

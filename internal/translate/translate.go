package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
)

// Model is the chat model used for bulletin translations.
const Model = "gpt-5-mini"

const systemPrompt = "Translate the following avalanche/weather bulletin text " +
	"from French to concise, clear English. Keep numeric values and " +
	"mountain/aspect terms intact. Do not add commentary."

// Store is the persistence surface the translator needs: the exact-match
// translation cache plus write-back of fresh pairs.
type Store interface {
	FindEnglishByFrench(ctx context.Context, frenchText string) (*string, error)
	UpsertTextSource(ctx context.Context, row storage.TextSourceRow) error
}

// completionClient is satisfied by *openai.Client.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Result is one translation outcome. Cached reports whether the English
// text came from the store rather than a model call.
type Result struct {
	EnglishText string
	Cached      bool
}

// Translator turns French bulletin text into English, consulting the
// persistent cache before calling the model.
type Translator struct {
	store   Store
	client  completionClient
	metrics *observability.Metrics
	log     *slog.Logger
}

// New constructs a Translator backed by the OpenAI API.
func New(apiKey string, store Store, metrics *observability.Metrics, log *slog.Logger) *Translator {
	return NewWithClient(openai.NewClient(apiKey), store, metrics, log)
}

// NewWithClient constructs a Translator with an injectable completion
// client (used in tests).
func NewWithClient(client completionClient, store Store, metrics *observability.Metrics, log *slog.Logger) *Translator {
	return &Translator{store: store, client: client, metrics: metrics, log: log}
}

// Translate returns the English rendering of frenchText. Blank input short
// circuits, a cache hit skips the model, and an empty model answer falls
// back to the source text. Cache write-back failures are logged but do not
// fail the translation.
func (t *Translator) Translate(ctx context.Context, frenchText, source, validDate string) (Result, error) {
	if strings.TrimSpace(frenchText) == "" {
		return Result{EnglishText: "", Cached: true}, nil
	}

	cached, err := t.store.FindEnglishByFrench(ctx, frenchText)
	if err != nil {
		t.log.Warn("translation cache lookup failed", "error", err)
	} else if cached != nil {
		t.metrics.TranslationCache.WithLabelValues("hit").Inc()
		return Result{EnglishText: *cached, Cached: true}, nil
	}
	t.metrics.TranslationCache.WithLabelValues("miss").Inc()

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       Model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: frenchText},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("requesting translation: %w", err)
	}

	english := ""
	if len(resp.Choices) > 0 {
		english = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if english == "" {
		t.log.Warn("translation returned empty text, keeping source language",
			"source", source, "validDate", validDate)
		english = frenchText
	}

	row := storage.TextSourceRow{
		Source:      source,
		ValidDate:   validDate,
		FrenchText:  &frenchText,
		EnglishText: &english,
	}
	if err := t.store.UpsertTextSource(ctx, row); err != nil {
		t.log.Warn("translation cache write-back failed",
			"source", source, "validDate", validDate, "error", err)
	}

	return Result{EnglishText: english, Cached: false}, nil
}

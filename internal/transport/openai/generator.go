package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// Generator answers prompts through the chat completion endpoint.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	maxRetries  int
	retryBase   time.Duration
	logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generative model client.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		retryBase:   cfg.retryBase(),
		logger:      cfg.logger(),
	}
}

// Generate implements domain.Generator. An empty completion yields an empty string.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, g.maxRetries, g.retryBase, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.CreateChatCompletion(ctx, req)
		if callErr != nil && retryable(callErr) {
			g.logger.Warn("Generation request failed, retrying",
				zap.String("model", g.model), zap.Error(callErr))
		}
		return callErr //nolint:wrapcheck // wrapped below
	})
	metrics.GenerationRequestsTotal.WithLabelValues(g.model, metrics.StatusOf(err)).Inc()
	if err != nil {
		return "", domain.WrapRemote(ctx, domain.ErrGenerationProvider, describe("chat completion", err), err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", domain.ErrGenerationProvider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

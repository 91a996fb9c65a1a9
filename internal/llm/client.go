// Package llm is the boundary to the generation and embedding backend.
// It speaks the OpenAI-compatible chat/embeddings API, which Ollama
// serves locally under /v1, so the same client covers both a local
// Ollama daemon and any hosted OpenAI-compatible endpoint.
package llm

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/pkg/circuitbreaker"
	"github.com/crashlens/crashlens/pkg/config"
	"github.com/crashlens/crashlens/pkg/logger"
	"github.com/crashlens/crashlens/pkg/retry"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a generation request.
type Message struct {
	Role    string
	Content string
}

// Options tune a single generation call. Zero values fall back to the
// client's configured defaults.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	embedTimeout   time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(cfg config.LLMConfig) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	embedTimeout := time.Duration(cfg.EmbedTimeoutSec) * time.Second
	if embedTimeout == 0 {
		embedTimeout = 15 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("base_url", apiConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
	)

	return &Client{
		api:            openai.NewClientWithConfig(apiConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		embedTimeout:   embedTimeout,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) buildRequest(messages []Message, opts Options) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// Chat performs one blocking generation call and returns the complete
// response text.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.buildRequest(messages, opts)

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, req)
			if err != nil {
				return classifyErr("chat completion", err)
			}
			if len(resp.Choices) == 0 {
				return errors.New("chat completion returned no choices")
			}

			logger.Debug("Chat completion generated",
				zap.String("model", req.Model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// ChatStream performs a streaming generation call, invoking onChunk for
// every delta as it arrives, and returns the accumulated text. A
// cancelled ctx aborts the stream mid-flight. The stream is not
// retried: chunks already delivered to the caller cannot be taken back.
func (c *Client) ChatStream(ctx context.Context, messages []Message, opts Options, onChunk func(chunk string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.buildRequest(messages, opts)
	req.Stream = true

	var full []byte

	err := c.cb.Execute(ctx, func() error {
		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return classifyErr("chat stream", err)
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return classifyErr("chat stream recv", err)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full = append(full, delta...)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	})
	if err != nil {
		return "", err
	}

	logger.Debug("Chat stream completed",
		zap.String("model", req.Model),
		zap.Int("response_length", len(full)),
	)

	return string(full), nil
}

// Embed converts text into a fixed-length vector using the configured
// embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return classifyErr("create embedding", err)
			}
			if len(resp.Data) == 0 {
				return errors.New("embedding response has no data")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// ListModels returns the model IDs available on the backend.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, classifyErr("list models", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/pkg/circuitbreaker"
	"github.com/estatedesk/backend/pkg/config"
	"github.com/estatedesk/backend/pkg/logger"
)

// Turn is one entry of a conversation transcript.
type Turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

type Client struct {
	api          *openai.Client
	model        string
	legacyModel  string
	whisperModel string
	temperature  float32
	maxTokens    int
	timeout      time.Duration
	cb           *circuitbreaker.CircuitBreaker
}

func NewClient(cfg config.LLMConfig) *Client {
	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("legacy_model", cfg.LegacyModel),
	)

	return &Client{
		api:          openai.NewClient(cfg.APIKey),
		model:        cfg.Model,
		legacyModel:  cfg.LegacyModel,
		whisperModel: cfg.WhisperModel,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		timeout:      timeout,
		cb:           cb,
	}
}

func (c *Client) Model() string       { return c.model }
func (c *Client) LegacyModel() string { return c.legacyModel }

// GenerateContent runs one concierge chat turn: a system instruction plus
// the full conversation transcript. The circuit breaker fails the turn
// fast when the upstream has been consistently down.
func (c *Client) GenerateContent(ctx context.Context, system string, turns []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}

		logger.Debug("Chat turn generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		content = resp.Choices[0].Message.Content
		return nil
	})

	if err != nil {
		return "", Classify(err)
	}

	return content, nil
}

// ExtractStructured submits input with a strict extraction prompt and
// decodes the JSON object the model returns into out. Used by ingestion
// against the primary and legacy models.
func (c *Client) ExtractStructured(ctx context.Context, model, system, input string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: 0.1,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Classify(err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty extraction response")
	}

	return decodeJSONContent(resp.Choices[0].Message.Content, out)
}

// ExtractStructuredLegacy is the secondary API surface: the plain
// completions endpoint without JSON mode, for models that predate it.
func (c *Client) ExtractStructuredLegacy(ctx context.Context, model, system, input string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       model,
		Prompt:      system + "\n\n" + input,
		Temperature: 0.1,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return Classify(err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty extraction response")
	}

	return decodeJSONContent(resp.Choices[0].Text, out)
}

// Transcribe converts an inline audio recording to text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.whisperModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", Classify(err)
	}

	logger.Info("Audio transcribed",
		zap.String("filename", filename),
		zap.Int("transcript_length", len(resp.Text)),
	)
	return resp.Text, nil
}

// decodeJSONContent tolerates models that wrap the object in a markdown
// fence or prepend commentary.
func decodeJSONContent(content string, out interface{}) error {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

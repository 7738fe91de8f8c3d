package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// #region config

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// GroqDefaultModel is used with GroqBaseURL when no model is configured.
const GroqDefaultModel = "llama-3.1-8b-instant"

const defaultSystemPrompt = "You are a careful career-guidance assistant for high-school students. " +
	"Answer only from the provided context and say so when the context does not cover the question."

// OpenAIConfig configures an OpenAI-compatible chat completion client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // empty = api.openai.com
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// #endregion config

// #region client

// OpenAIClient generates text through the chat completions API. Works with
// OpenAI and with Groq via GroqBaseURL.
type OpenAIClient struct {
	client *openai.Client
	config OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient validates cfg and builds the client.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: logger.Named("openai"),
	}, nil
}

// Generate sends the context and prompt as one user turn under the system prompt.
func (o *OpenAIClient) Generate(ctx context.Context, prompt, evidence string) (string, error) {
	user := prompt
	if strings.TrimSpace(evidence) != "" {
		user = "Context:\n" + evidence + "\n\n" + prompt
	}
	req := openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.config.Temperature,
	}
	if o.config.MaxTokens > 0 {
		req.MaxCompletionTokens = o.config.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	o.logger.Debug("completion received",
		zap.String("model", o.config.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)))

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// #endregion client

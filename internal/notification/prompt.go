// internal/notification/prompt.go

package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultPrompt is sent whenever generation fails or returns nothing usable
const DefaultPrompt = "What are you grateful for today?"

const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultPromptModel     = "deepseek-chat"

	promptSystemMessage = "You are a friendly and creative coach that generates very short gratitude prompts. " +
		"Rules: 1) Keep it under 20 words 2) Never use quotation marks " +
		"3) Write in a direct, conversational tone 4) End with a question mark if asking a question"
	promptUserMessage = "Generate a unique gratitude prompt for %s. Make it personal and thought-provoking, but never use quotes."
)

// ErrEmptyPrompt is returned when the model answers with no usable text
var ErrEmptyPrompt = errors.New("prompt generator returned empty text")

// DeepSeekPromptGenerator asks an OpenAI-compatible chat endpoint for a prompt
type DeepSeekPromptGenerator struct {
	client *openai.Client
	model  string
	now    func() time.Time
	log    *zap.Logger
}

// PromptOption customizes a DeepSeekPromptGenerator
type PromptOption func(*DeepSeekPromptGenerator)

// WithPromptClock overrides the clock used to salt the request
func WithPromptClock(now func() time.Time) PromptOption {
	return func(g *DeepSeekPromptGenerator) { g.now = now }
}

// NewDeepSeekPromptGenerator creates a generator. Empty baseURL and model fall back to the DeepSeek defaults.
func NewDeepSeekPromptGenerator(apiKey, baseURL, model string, log *zap.Logger, opts ...PromptOption) (*DeepSeekPromptGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	if model == "" {
		model = DefaultPromptModel
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")

	g := &DeepSeekPromptGenerator{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate requests a fresh prompt and cleans it up for SMS
func (g *DeepSeekPromptGenerator) Generate(ctx context.Context) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: promptSystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptUserMessage, g.now().UTC().Format(time.RFC3339))},
		},
		Temperature:      0.9,
		MaxTokens:        64,
		PresencePenalty:  0.6,
		FrequencyPenalty: 0.6,
	})
	if err != nil {
		return "", fmt.Errorf("prompt completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyPrompt
	}

	prompt := CleanPrompt(resp.Choices[0].Message.Content)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	g.log.Debug("prompt generated", zap.String("prompt", prompt))
	return prompt, nil
}

var quoteStripper = strings.NewReplacer(
	`"`, "",
	"'", "",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
)

// CleanPrompt strips quote characters, trims whitespace and makes sure the
// prompt ends with terminal punctuation. Blank input stays blank.
func CleanPrompt(s string) string {
	s = strings.TrimSpace(quoteStripper.Replace(s))
	if s == "" {
		return ""
	}
	switch s[len(s)-1] {
	case '?', '.', '!':
		return s
	}
	return s + "?"
}

// StaticPromptGenerator always returns the same prompt
type StaticPromptGenerator struct {
	Prompt string
}

// NewStaticPromptGenerator returns a generator for prompt, or DefaultPrompt when blank
func NewStaticPromptGenerator(prompt string) *StaticPromptGenerator {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	return &StaticPromptGenerator{Prompt: prompt}
}

func (g *StaticPromptGenerator) Generate(ctx context.Context) (string, error) {
	return g.Prompt, nil
}

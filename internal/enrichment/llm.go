package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 512
	rateLimitKey     = "llm"
)

// ContentScorer rates page text on the five content dimensions.
type ContentScorer interface {
	ScoreContent(ctx context.Context, url, text string) (crawler.LLMScores, error)
}

// Waiter throttles outbound calls.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// messageAPI is the slice of the Anthropic client the scorer uses.
type messageAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicScorer asks a Claude model for JSON scores.
type AnthropicScorer struct {
	messages  messageAPI
	model     string
	maxTokens int64
	limiter   Waiter
	validate  *validator.Validate
}

// AnthropicConfig configures NewAnthropicScorer.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewAnthropicScorer builds a scorer backed by the Messages API.
func NewAnthropicScorer(cfg AnthropicConfig, limiter Waiter) *AnthropicScorer {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicScorer(&client.Messages, cfg, limiter)
}

func newAnthropicScorer(api messageAPI, cfg AnthropicConfig, limiter Waiter) *AnthropicScorer {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicScorer{
		messages:  api,
		model:     model,
		maxTokens: maxTokens,
		limiter:   limiter,
		validate:  validator.New(),
	}
}

const systemPrompt = `You grade web page content for how well AI assistants can understand and cite it.
Score each dimension from 0 to 100:
- clarity: plain, unambiguous writing
- authority: expertise signals, sources, attribution
- comprehensiveness: depth and coverage of the topic
- structure: headings, lists, logical flow
- citability: self-contained facts and quotable statements
Reply with a single JSON object and nothing else, for example:
{"clarity":70,"authority":55,"comprehensiveness":80,"structure":65,"citability":60}`

// ScoreContent sends text to the model and parses its scores.
func (s *AnthropicScorer) ScoreContent(ctx context.Context, url, text string) (crawler.LLMScores, error) {
	if strings.TrimSpace(text) == "" {
		return crawler.LLMScores{}, fmt.Errorf("%w: no text to score", ErrPermanent)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rateLimitKey); err != nil {
			return crawler.LLMScores{}, err
		}
	}
	msg, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("URL: " + url + "\n\n" + text)),
		},
	})
	if err != nil {
		return crawler.LLMScores{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	scores, err := parseScores(reply.String())
	if err != nil {
		return crawler.LLMScores{}, err
	}
	if err := s.validate.Struct(scores); err != nil {
		return crawler.LLMScores{}, fmt.Errorf("model returned out-of-range scores: %w", err)
	}
	scores.Model = s.model
	return scores, nil
}

// parseScores extracts the first JSON object from a model reply.
func parseScores(reply string) (crawler.LLMScores, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return crawler.LLMScores{}, errors.New("model reply contains no JSON object")
	}
	var raw struct {
		Clarity           *int `json:"clarity"`
		Authority         *int `json:"authority"`
		Comprehensiveness *int `json:"comprehensiveness"`
		Structure         *int `json:"structure"`
		Citability        *int `json:"citability"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return crawler.LLMScores{}, fmt.Errorf("decode model reply: %w", err)
	}
	if raw.Clarity == nil || raw.Authority == nil || raw.Comprehensiveness == nil ||
		raw.Structure == nil || raw.Citability == nil {
		return crawler.LLMScores{}, errors.New("model reply is missing a dimension")
	}
	return crawler.LLMScores{
		Clarity:           *raw.Clarity,
		Authority:         *raw.Authority,
		Comprehensiveness: *raw.Comprehensiveness,
		Structure:         *raw.Structure,
		Citability:        *raw.Citability,
	}, nil
}

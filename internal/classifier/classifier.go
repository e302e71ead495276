package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/pkg/logger"
	"github.com/socialpulse/pkg/ratelimit"
)

// Classifier assigns a topic label to free text
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

const systemPrompt = `You are a topic classifier for social media content.
Classify the text into exactly one of these labels:
sport, politics, tech, entertainment, other

Respond with ONLY the label, nothing else.`

// maxInputRunes caps how much of a post body is sent for classification
const maxInputRunes = 2000

// Anthropic implements Classifier using the Claude API
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewAnthropic creates a new Claude-backed classifier
func NewAnthropic(cfg config.AnthropicConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Anthropic {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Anthropic{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		rateLimiter: limiter,
		log:         log.WithComponent("classifier"),
	}
}

// Classify sends the text to Claude and returns a lower-cased topic label
func (c *Anthropic) Classify(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text")
	}

	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterClassifier); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	input := []rune(text)
	if len(input) > maxInputRunes {
		input = input[:maxInputRunes]
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(string(input)),
				},
			},
		},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("Claude API error")
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var response string
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			response += textBlock.Text
		}
	}

	label := NormalizeLabel(response)
	if label == "" {
		return "", fmt.Errorf("classifier returned no usable label: %q", response)
	}

	c.log.Debug().
		Str("label", label).
		Int("input_tokens", int(message.Usage.InputTokens)).
		Int("output_tokens", int(message.Usage.OutputTokens)).
		Msg("Classified text")

	return label, nil
}

// NormalizeLabel trims and lower-cases a model response down to a single
// label token. The label set is open-ended on purpose: an unexpected but
// well-formed label is stored as-is rather than forced to "other".
func NormalizeLabel(response string) string {
	label := strings.ToLower(strings.TrimSpace(response))
	// A chatty model response ("Label: tech.") still yields its last word.
	label = strings.Trim(label, ".\"'`")
	if fields := strings.Fields(label); len(fields) > 0 {
		label = fields[len(fields)-1]
	}
	label = strings.Trim(label, ".\"'`")
	if label == "" || len(label) > 40 {
		return ""
	}
	return label
}

// Ensure Anthropic implements Classifier
var _ Classifier = (*Anthropic)(nil)

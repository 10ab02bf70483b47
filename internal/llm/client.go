package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client generates a JSON document from a system instruction and a prompt
type Client interface {
	GenerateJSON(ctx context.Context, system, prompt string, tier ModelTier) (string, error)
	Close() error
}

// GenerationError is a model call that produced no usable answer
type GenerationError struct {
	Model  string
	Reason string
	Cause  error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Model, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Gemini implements Client with the Gemini API in JSON response mode
type Gemini struct {
	client *genai.Client
	cfg    *Config
}

// NewClient connects to Gemini. A nil cfg uses DefaultConfig.
func NewClient(ctx context.Context, cfg *Config, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// GenerateJSON asks the tier's model for a JSON answer and strips any code
// fence around it
func (g *Gemini) GenerateJSON(ctx context.Context, system, prompt string, tier ModelTier) (string, error) {
	name, err := g.cfg.Model(tier)
	if err != nil {
		return "", err
	}
	if g.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(g.cfg.Temperature)
	if g.cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(g.cfg.MaxOutputTokens)
	}
	if strings.TrimSpace(system) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &GenerationError{Model: name, Reason: "request failed", Cause: err}
	}
	text, reason := responseText(resp)
	if reason != "" {
		return "", &GenerationError{Model: name, Reason: reason}
	}
	return CleanJSONBlock(text), nil
}

// Close releases the underlying connection
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// responseText joins the text parts of the first candidate. A non-empty
// reason explains why there is no text.
func responseText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil {
		return "", "empty response"
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Sprintf("prompt blocked (%v)", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", "no candidates in response"
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Sprintf("no text in response (finish reason %v)", candidate.FinishReason)
	}
	return sb.String(), ""
}

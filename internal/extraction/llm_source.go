package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/llm"
	"github.com/jonathan/model-builder/internal/prompts"
	"github.com/jonathan/model-builder/internal/types"
)

const promptFile = "intent.json"

// Describer looks up what is known about a dataset. It may return nil.
type Describer interface {
	Describe(ctx context.Context, datasetID int) (*types.DatasetInfo, error)
}

// LLMSource extracts intents with a language model instead of the backend.
// It never creates a draft model, so results carry no model id.
type LLMSource struct {
	client    llm.Client
	tier      llm.ModelTier
	describer Describer
}

// NewLLMSource creates a source. describer may be nil.
func NewLLMSource(client llm.Client, tier llm.ModelTier, describer Describer) *LLMSource {
	if tier == "" {
		tier = llm.TierStandard
	}
	return &LLMSource{client: client, tier: tier, describer: describer}
}

type llmAnswer struct {
	Intent   json.RawMessage `json:"intent"`
	Warnings []string        `json:"warnings"`
}

// ExtractIntent asks the model for an intent and wraps it in the same
// envelope the backend returns.
func (s *LLMSource) ExtractIntent(ctx context.Context, req backend.ExtractIntentRequest) (*backend.ExtractIntentResponse, error) {
	var info *types.DatasetInfo
	if s.describer != nil {
		d, err := s.describer.Describe(ctx, req.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("describe dataset %d: %w", req.DatasetID, err)
		}
		info = d
	}

	prompt, err := BuildPrompt(req.Prompt, req.DatasetID, info)
	if err != nil {
		return nil, err
	}
	system, err := prompts.Get(promptFile, "extract-intent-system")
	if err != nil {
		return nil, err
	}

	text, err := s.client.GenerateJSON(ctx, system, prompt, s.tier)
	if err != nil {
		return nil, fmt.Errorf("intent generation failed: %w", err)
	}

	var answer llmAnswer
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(text)), &answer); err != nil {
		return &backend.ExtractIntentResponse{
			Success:   false,
			Error:     "Language model returned unreadable JSON",
			RawPrompt: req.Prompt,
		}, nil
	}

	if info == nil {
		id := req.DatasetID
		info = &types.DatasetInfo{DatasetID: &id}
	}
	return &backend.ExtractIntentResponse{
		Success:     true,
		Intent:      answer.Intent,
		Validation:  &types.ExtractionValidation{IsValid: len(answer.Warnings) == 0, Warnings: answer.Warnings},
		DatasetInfo: info,
		RawPrompt:   req.Prompt,
	}, nil
}

// BuildPrompt renders the user request together with the dataset description.
// The catalog knows dataset sizes but not column names.
func BuildPrompt(userPrompt string, datasetID int, info *types.DatasetInfo) (string, error) {
	id := strconv.Itoa(datasetID)
	var datasetContext string
	var err error
	if info != nil && len(info.Shape) == 2 {
		datasetContext, err = prompts.Render(promptFile, "dataset-sized", map[string]string{
			"DatasetID": id,
			"Shape":     fmt.Sprintf("%d rows x %d columns", info.Shape[0], info.Shape[1]),
		})
	} else {
		datasetContext, err = prompts.Render(promptFile, "dataset-unknown", map[string]string{"DatasetID": id})
	}
	if err != nil {
		return "", err
	}

	body, err := prompts.Render(promptFile, "extract-intent", map[string]string{
		"DatasetContext": datasetContext,
		"Prompt":         strings.TrimSpace(userPrompt),
	})
	if err != nil {
		return "", err
	}
	return llm.BuildExtractionPrompt(llm.IntentSchema(), body), nil
}

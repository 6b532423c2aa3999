package rewriter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

const defaultModel = "gemini-2.0-flash"

// GenAI is a Rewriter backed by the Gemini API. It asks the model to propose
// an adjusted prompt/negative-prompt pair plus a short rationale, given the
// current pair, and falls back to the untouched inputs on any failure.
type GenAI struct {
	client  *genai.Client
	model   string
	logger  arbor.ILogger
	timeout time.Duration
}

// NewGenAI creates a GenAI rewriter. apiKey is required; model defaults to
// defaultModel when empty.
func NewGenAI(ctx context.Context, apiKey, model string, logger arbor.ILogger) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai rewriter: api key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %w", err)
	}

	return &GenAI{client: client, model: model, logger: logger, timeout: 15 * time.Second}, nil
}

// rewriteResponse is the JSON shape asked of the model.
type rewriteResponse struct {
	Prompt    string `json:"prompt"`
	Negative  string `json:"negative"`
	Rationale string `json:"rationale"`
}

// Rewrite asks Gemini to refine prompt/negative for a stronger next
// generation attempt, given that the current pair was selected by the user.
// On any model or parsing failure it returns the inputs unchanged with an
// explanatory rationale rather than failing the caller's stage.
func (g *GenAI) Rewrite(ctx context.Context, prompt, negative string) (string, string, string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	instruction := "You refine image-generation prompts between iteration stages. " +
		"Given the current prompt and negative prompt, propose a refined pair that " +
		"sharpens detail and composition while preserving the subject. Respond with " +
		"strict JSON: {\"prompt\": ..., \"negative\": ..., \"rationale\": ...}."

	userText := fmt.Sprintf("prompt: %s\nnegative: %s", prompt, negative)

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0.4)),
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(userText)},
	}}

	resp, err := g.client.Models.GenerateContent(timeoutCtx, g.model, contents, config)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn().Err(err).Msg("rewriter call failed; falling back to untouched prompt")
		}
		return prompt, negative, "rewriter unavailable; prompt unchanged", nil
	}

	text := extractText(resp)
	if text == "" {
		return prompt, negative, "rewriter returned no content; prompt unchanged", nil
	}

	var parsed rewriteResponse
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		if g.logger != nil {
			g.logger.Warn().Err(err).Msg("rewriter returned unparseable response; falling back to untouched prompt")
		}
		return prompt, negative, "rewriter response unparseable; prompt unchanged", nil
	}

	if strings.TrimSpace(parsed.Prompt) == "" {
		parsed.Prompt = prompt
	}
	if strings.TrimSpace(parsed.Rationale) == "" {
		parsed.Rationale = "rewritten"
	}

	return parsed.Prompt, parsed.Negative, parsed.Rationale, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

// stripCodeFence removes a leading/trailing ``` or ```json fence some models
// wrap JSON responses in despite being asked not to.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

var _ interfaces.Rewriter = (*GenAI)(nil)

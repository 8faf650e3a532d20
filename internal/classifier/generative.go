package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/karavel-ai/compass/internal/api"
	"github.com/karavel-ai/compass/pkg/models"
)

// GenerativeClassifier is the narrow interface the slow path talks through.
// Implementations send the query plus the capability catalogue to a
// generative service and return a schema-validated classification.
// Implementations return an error for transport failures or malformed
// responses; the caller absorbs the error, never the user.
type GenerativeClassifier interface {
	Classify(ctx context.Context, query string, catalogue []CapabilityProfile) (*Classification, error)
}

// ClaudeClassifier implements GenerativeClassifier on top of the Anthropic
// API client.
type ClaudeClassifier struct {
	client *api.Client
}

// NewClaudeClassifier creates a Claude-backed classifier.
func NewClaudeClassifier(client *api.Client) *ClaudeClassifier {
	return &ClaudeClassifier{client: client}
}

const classifySystemPrompt = `You are a request router for a small-business assistant. Classify the user's request into exactly one intent and suggest the capability that should handle it. Respond with a single JSON object and nothing else.`

// classifyResponse mirrors the JSON schema the model is constrained to.
// Intent and capability are validated against the closed enums after
// unmarshaling; anything off-schema is treated as a classification failure.
type classifyResponse struct {
	Intent              string         `json:"intent"`
	Confidence          float64        `json:"confidence"`
	Reasoning           string         `json:"reasoning"`
	SuggestedCapability string         `json:"suggested_capability"`
	ExtractedParams     map[string]any `json:"extracted_params"`
}

// Classify sends the query and catalogue to Claude and validates the reply
// against the classification schema. It fails closed: any transport error,
// unparseable reply, or enum violation comes back as an error.
func (c *ClaudeClassifier) Classify(ctx context.Context, query string, catalogue []CapabilityProfile) (*Classification, error) {
	prompt, err := buildClassifyPrompt(query, catalogue)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := c.client.Complete(ctx, classifySystemPrompt, prompt, 1024)
	if err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}

	return parseClassification(raw)
}

// buildClassifyPrompt renders the query and the capability catalogue into
// the classification prompt.
func buildClassifyPrompt(query string, catalogue []CapabilityProfile) (string, error) {
	type catalogueEntry struct {
		ID          string   `json:"id"`
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
	}

	entries := make([]catalogueEntry, 0, len(catalogue))
	for _, p := range catalogue {
		entries = append(entries, catalogueEntry{
			ID:          string(p.Capability),
			Description: p.Description,
			Keywords:    p.Keywords,
		})
	}

	catalogueJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal catalogue: %w", err)
	}

	intents := make([]string, 0, len(models.AllIntents))
	for _, i := range models.AllIntents {
		intents = append(intents, string(i))
	}
	capabilities := make([]string, 0, len(models.AllCapabilities))
	for _, c := range models.AllCapabilities {
		capabilities = append(capabilities, string(c))
	}

	var sb strings.Builder
	sb.WriteString("Available capabilities:\n")
	sb.Write(catalogueJSON)
	sb.WriteString("\n\nRespond with JSON in this exact format:\n")
	sb.WriteString(`{"intent": "<one of: `)
	sb.WriteString(strings.Join(intents, ", "))
	sb.WriteString(`>", "confidence": <0.0-1.0>, "reasoning": "<why>", "suggested_capability": "<one of: `)
	sb.WriteString(strings.Join(capabilities, ", "))
	sb.WriteString(`>", "extracted_params": {<string-keyed parameters from the request>}}`)
	sb.WriteString("\n\nUser request:\n")
	sb.WriteString(query)

	return sb.String(), nil
}

// parseClassification extracts and validates the JSON object from the model
// reply. Models sometimes wrap the object in prose or code fences, so the
// parser takes the outermost braces.
func parseClassification(raw string) (*Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal classification: %w", err)
	}

	intent := models.Intent(resp.Intent)
	if !intent.Valid() {
		return nil, fmt.Errorf("invalid intent %q", resp.Intent)
	}
	capability := models.Capability(resp.SuggestedCapability)
	if !capability.Valid() {
		return nil, fmt.Errorf("invalid capability %q", resp.SuggestedCapability)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", resp.Confidence)
	}

	return &Classification{
		Intent:              intent,
		Confidence:          resp.Confidence,
		SuggestedCapability: capability,
		Reasoning:           resp.Reasoning,
		ExtractedParams:     resp.ExtractedParams,
	}, nil
}

// Package classify extracts structured signals from free-text queries
// using a chat LLM: which vehicle the user is asking about, and which
// topics the question covers. Malformed classifier replies degrade to
// empty results; only transport failures surface as errors.
package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dang-hang/fleet-wise-aide/llm"
)

// Vehicle is the identity extracted from a query. Any field may be nil
// when the query does not mention it; nil fields act as wildcards
// during section lookup.
type Vehicle struct {
	Year  *int    `json:"year"`
	Make  *string `json:"make"`
	Model *string `json:"model"`
}

// Empty reports whether no identity field was extracted.
func (v Vehicle) Empty() bool {
	return v.Year == nil && v.Make == nil && v.Model == nil
}

// Classifier runs the extraction prompts against a chat provider.
type Classifier struct {
	provider llm.Provider
	model    string
}

// New creates a Classifier backed by the given provider and model.
func New(provider llm.Provider, model string) *Classifier {
	return &Classifier{provider: provider, model: model}
}

const vehiclePrompt = `Extract vehicle information from user queries.

Return JSON:
{
  "year": 2020,  // null if not mentioned
  "make": "Honda",  // null if not mentioned
  "model": "Civic"  // null if not mentioned
}

Examples:
- "How do I change oil in my 2020 Honda Civic?" -> {"year": 2020, "make": "Honda", "model": "Civic"}
- "What's the tire pressure for a Civic?" -> {"year": null, "make": null, "model": "Civic"}
- "My 2019 Toyota needs maintenance" -> {"year": 2019, "make": "Toyota", "model": null}`

const topicsPrompt = `Extract key automotive topics from the query.

Return JSON array of relevant topics/keywords:
["oil change", "maintenance", "engine"]

Focus on:
- Maintenance tasks
- Vehicle systems (engine, transmission, brakes, etc.)
- Parts/components
- Problems/symptoms

Return empty array if query is too general.`

// Vehicle extracts year/make/model from a natural-language query.
// An unparseable reply yields an empty identity, not an error.
func (c *Classifier) Vehicle(ctx context.Context, query string) (Vehicle, error) {
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: vehiclePrompt},
			{Role: "user", Content: query},
		},
		MaxTokens: 100,
	})
	if err != nil {
		return Vehicle{}, fmt.Errorf("classify: vehicle extraction: %w", err)
	}

	var v Vehicle
	if err := ParseStructured(resp.Content, &v); err != nil {
		slog.Warn("classify: unparseable vehicle reply", "error", err)
		return Vehicle{}, nil
	}
	return v, nil
}

// Topics extracts topic keywords from a query for section filtering.
// May return an empty set; an unparseable reply yields an empty set.
func (c *Classifier) Topics(ctx context.Context, query string) ([]string, error) {
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: topicsPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: topic extraction: %w", err)
	}

	var topics []string
	if err := ParseStructured(resp.Content, &topics); err != nil {
		slog.Warn("classify: unparseable topics reply", "error", err)
		return nil, nil
	}
	return topics, nil
}

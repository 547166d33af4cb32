// Package analyzer talks to the language model: it builds scene maps of a
// whole keynote and critiques individual segments.
package analyzer

import (
	"context"
	"fmt"

	"github.com/abdulachik/kfa/internal/llm"
)

// CritiqueMessages builds the two-message conversation for one segment.
func CritiqueMessages(segmentText string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(CritiquePrompt, segmentText)},
	}
}

// Critique asks the provider for a diagnosis, rewrite and rationale of a
// segment. It makes exactly one call and returns whatever text comes back;
// the labeled fields are not validated.
func Critique(ctx context.Context, p llm.Provider, model, segmentText string, temperature float64, maxOutputTokens int) (string, error) {
	out, err := p.Respond(ctx, CritiqueMessages(segmentText), llm.Options{
		Model:           model,
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("critique: %w", err)
	}
	return out, nil
}

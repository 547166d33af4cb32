package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdulachik/kfa/internal/chunker"
	"github.com/abdulachik/kfa/internal/llm"
)

// Generation parameters for the scene map call.
const (
	SceneMapTemperature     = 0.2
	SceneMapMaxOutputTokens = 2000
)

const scenesHeader = "[SCENES]"

// SceneMapMessages builds the conversation that requests a scene map.
func SceneMapMessages(text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: SceneMapPrompt + "\n\n" + text},
	}
}

// BuildSceneMap sends the whole document to the provider and returns the
// generated markdown verbatim.
func BuildSceneMap(ctx context.Context, p llm.Provider, model, text string) (string, error) {
	out, err := p.Respond(ctx, SceneMapMessages(text), llm.Options{
		Model:           model,
		Temperature:     SceneMapTemperature,
		MaxOutputTokens: SceneMapMaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("build scene map: %w", err)
	}
	return out, nil
}

// ParseSceneMap extracts scene labels from list-item lines, skipping the
// [SCENES] header line. It is best-effort: a map with no list items yields
// an empty slice, and labels carry no positions in the source text.
func ParseSceneMap(markdown string) []string {
	var scenes []string
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") || strings.Contains(line, scenesHeader) {
			continue
		}
		label := strings.Trim(trimmed, "- ")
		if label == "" {
			continue
		}
		scenes = append(scenes, label)
	}
	return scenes
}

// CutByScenes turns a scene list into segments. Scene labels have no
// character offsets, so the whole document is returned as one segment
// whatever the scene count.
func CutByScenes(text string, scenes []string) []chunker.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []chunker.Segment{{
		Index:     0,
		Text:      text,
		Tokens:    chunker.EstimateTokens(text),
		Sentences: []string{text},
	}}
}

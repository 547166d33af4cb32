package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAI is a client for the OpenAI Responses API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates a new OpenAI client.
func NewOpenAI(cfg Config) *OpenAI {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}
}

type openAIRequest struct {
	Model           string    `json:"model"`
	Input           []Message `json:"input"`
	Temperature     float64   `json:"temperature"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
}

type openAIResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// outputText concatenates every output_text part of every message item.
func (r openAIResponse) outputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// Respond sends the conversation as Responses API input items.
func (c *OpenAI) Respond(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := openAIRequest{
		Model:           opts.Model,
		Input:           messages,
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxOutputTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", failure("send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failure("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusFailure("openai", resp.StatusCode, respBody)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", failure("unmarshal response", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("%w: openai: %s - %s", ErrProviderFailure, parsed.Error.Code, parsed.Error.Message)
	}

	return parsed.outputText(), nil
}

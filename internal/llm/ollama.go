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

const defaultOllamaHost = "http://localhost:11434"

// Ollama generates chat completions with a local Ollama server.
type Ollama struct {
	host       string
	httpClient *http.Client
}

// NewOllama creates a new Ollama client. cfg.BaseURL is the server host.
func NewOllama(cfg Config) *Ollama {
	host := strings.TrimRight(cfg.BaseURL, "/")
	if host == "" {
		host = defaultOllamaHost
	}

	return &Ollama{
		host:       host,
		httpClient: cfg.httpClient(),
	}
}

// ollamaRequest is the request body for the Ollama chat API.
type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is the non-streaming response from the Ollama chat API.
type ollamaResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Respond sends the conversation to /api/chat with streaming disabled.
func (o *Ollama) Respond(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := ollamaRequest{
		Model:    opts.Model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.host)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", failure("send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failure("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusFailure("Ollama", resp.StatusCode, respBody)
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return "", failure("unmarshal response", err)
	}

	if ollamaResp.Error != "" {
		return "", fmt.Errorf("%w: Ollama: %s", ErrProviderFailure, ollamaResp.Error)
	}

	return ollamaResp.Message.Content, nil
}

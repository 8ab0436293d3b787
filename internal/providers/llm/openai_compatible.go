package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sandevgo/reverie/internal/core"
)

// OpenAICompatible talks to any /v1/chat/completions endpoint. One instance
// is bound to one base URL, key and model.
type OpenAICompatible struct {
	baseProvider
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewOpenAICompatible(cfg Config) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
	}
}

func (o *OpenAICompatible) Complete(ctx context.Context, messages []core.Message, temperature float64) (string, error) {
	payload := map[string]any{
		"model":       o.model,
		"messages":    messages,
		"temperature": temperature,
	}

	headers := make(map[string]string)
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return parseCompletionResponse(resp)
}

func (o *OpenAICompatible) Models(ctx context.Context) ([]string, error) {
	headers := make(map[string]string)
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	resp, err := o.doRequest(ctx, http.MethodGet, "/v1/models", nil, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var apiResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]string, 0, len(apiResp.Data))
	for _, m := range apiResp.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func parseCompletionResponse(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message.Content, nil
}

package providers

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderTypeAnthropic    ProviderType = "anthropic"
	ProviderBaseURLAnthropic string       = "https://api.anthropic.com"
	defaultAnthropicModel    string       = "claude-3-5-haiku-latest"
)

type AnthropicProvider struct {
	baseURL         string
	apiKey          string
	model           string
	requiredHeaders map[string]string
}

func NewAnthropicProvider(baseURL string, apiKey string, model string, requiredHeaders map[string]string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = ProviderBaseURLAnthropic
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	if requiredHeaders == nil {
		requiredHeaders = map[string]string{
			"anthropic-version": "2023-06-01",
		}
	}
	return &AnthropicProvider{baseURL: baseURL, apiKey: apiKey, model: model, requiredHeaders: requiredHeaders}
}

func (p *AnthropicProvider) GetName() string {
	return "Anthropic"
}

func (p *AnthropicProvider) GetType() ProviderType {
	return ProviderTypeAnthropic
}

func (p *AnthropicProvider) ChatURL() string {
	return strings.TrimSuffix(p.baseURL, "/") + "/v1/messages"
}

func (p *AnthropicProvider) BuildChatBody(system, user string) map[string]interface{} {
	return map[string]interface{}{
		"model":      p.model,
		"max_tokens": 512,
		"system":     system,
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": user},
		},
	}
}

func (p *AnthropicProvider) SetAuthHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	// Add required headers (e.g., anthropic-version)
	for key, value := range p.requiredHeaders {
		req.Header.Set(key, value)
	}
}

func (p *AnthropicProvider) ExtractResponseText(data map[string]interface{}) (string, error) {
	// Anthropic response format:
	// {
	//   "content": [{"type": "text", "text": "..."}],
	//   "role": "assistant"
	// }
	content, ok := data["content"].([]interface{})
	if !ok || len(content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var result strings.Builder
	for _, item := range content {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if itemMap["type"] == "text" {
			if text, ok := itemMap["text"].(string); ok {
				result.WriteString(text)
			}
		}
	}

	if result.Len() == 0 {
		return "", fmt.Errorf("no text blocks in response content")
	}
	return result.String(), nil
}

func (p *AnthropicProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

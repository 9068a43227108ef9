package providers

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderBaseURLOpenAI string       = "https://api.openai.com"
	defaultOpenAIModel    string       = "gpt-4o-mini"
)

type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAIProvider(baseURL string, apiKey string, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = ProviderBaseURLOpenAI
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{baseURL: baseURL, apiKey: apiKey, model: model}
}

func (p *OpenAIProvider) GetName() string {
	return "OpenAI"
}

func (p *OpenAIProvider) GetType() ProviderType {
	return ProviderTypeOpenAI
}

func (p *OpenAIProvider) ChatURL() string {
	return strings.TrimSuffix(p.baseURL, "/") + "/v1/chat/completions"
}

func (p *OpenAIProvider) BuildChatBody(system, user string) map[string]interface{} {
	return map[string]interface{}{
		"model": p.model,
		"messages": []interface{}{
			map[string]interface{}{"role": "system", "content": system},
			map[string]interface{}{"role": "user", "content": user},
		},
		"temperature": 0.4,
	}
}

func (p *OpenAIProvider) SetAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *OpenAIProvider) ExtractResponseText(data map[string]interface{}) (string, error) {
	choices, ok := data["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid choice format")
	}

	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("no message in choice")
	}

	content, ok := message["content"].(string)
	if !ok {
		return "", fmt.Errorf("no content in message")
	}
	return content, nil
}

func (p *OpenAIProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

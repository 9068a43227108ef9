package providers

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderTypeMistral    ProviderType = "mistral"
	ProviderBaseURLMistral string       = "https://api.mistral.ai"
	defaultMistralModel    string       = "mistral-small-latest"
)

type MistralProvider struct {
	baseURL string
	apiKey  string
	model   string
}

func NewMistralProvider(baseURL string, apiKey string, model string) *MistralProvider {
	if baseURL == "" {
		baseURL = ProviderBaseURLMistral
	}
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralProvider{baseURL: baseURL, apiKey: apiKey, model: model}
}

func (p *MistralProvider) GetName() string {
	return "Mistral"
}

func (p *MistralProvider) GetType() ProviderType {
	return ProviderTypeMistral
}

func (p *MistralProvider) ChatURL() string {
	return strings.TrimSuffix(p.baseURL, "/") + "/v1/chat/completions"
}

// Mistral uses the same "messages" chat format as OpenAI.
func (p *MistralProvider) BuildChatBody(system, user string) map[string]interface{} {
	return map[string]interface{}{
		"model": p.model,
		"messages": []interface{}{
			map[string]interface{}{"role": "system", "content": system},
			map[string]interface{}{"role": "user", "content": user},
		},
		"temperature": 0.4,
	}
}

func (p *MistralProvider) SetAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *MistralProvider) ExtractResponseText(data map[string]interface{}) (string, error) {
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

func (p *MistralProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

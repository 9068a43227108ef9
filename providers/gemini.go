package providers

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderTypeGemini    ProviderType = "gemini"
	ProviderBaseURLGemini string       = "https://generativelanguage.googleapis.com"
	defaultGeminiModel    string       = "gemini-2.0-flash"
)

type GeminiProvider struct {
	baseURL string
	apiKey  string
	model   string
}

func NewGeminiProvider(baseURL string, apiKey string, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = ProviderBaseURLGemini
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{baseURL: baseURL, apiKey: apiKey, model: model}
}

func (p *GeminiProvider) GetName() string {
	return "Gemini"
}

func (p *GeminiProvider) GetType() ProviderType {
	return ProviderTypeGemini
}

func (p *GeminiProvider) ChatURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(p.baseURL, "/"), p.model, p.apiKey)
}

func (p *GeminiProvider) BuildChatBody(system, user string) map[string]interface{} {
	return map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []interface{}{map[string]interface{}{"text": system}},
		},
		"contents": []interface{}{
			map[string]interface{}{
				"role":  "user",
				"parts": []interface{}{map[string]interface{}{"text": user}},
			},
		},
	}
}

func (p *GeminiProvider) SetAuthHeaders(req *http.Request) {
	// Gemini authenticates through the key query parameter.
	req.Header.Set("Content-Type", "application/json")
}

func (p *GeminiProvider) ExtractResponseText(data map[string]interface{}) (string, error) {
	// Gemini response has "candidates" array with "content.parts[].text"
	candidates, ok := data["candidates"].([]interface{})
	if !ok || len(candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var result strings.Builder
	for _, candidate := range candidates {
		candidateMap, ok := candidate.(map[string]interface{})
		if !ok {
			continue
		}
		content, ok := candidateMap["content"].(map[string]interface{})
		if !ok {
			continue
		}
		parts, ok := content["parts"].([]interface{})
		if !ok {
			continue
		}
		for _, part := range parts {
			partMap, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := partMap["text"].(string); ok {
				result.WriteString(text)
			}
		}
	}

	if result.Len() == 0 {
		return "", fmt.Errorf("no text parts in response candidates")
	}
	return result.String(), nil
}

func (p *GeminiProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

package providers

import (
	"fmt"
	"net/http"
)

type ProviderType string

// Provider defines the interface all hosted-model providers implement. The
// service sends one small chat completion per color and reads back a single
// text block.
type Provider interface {
	GetType() ProviderType
	GetName() string

	// ChatURL returns the full endpoint URL for a chat completion.
	ChatURL() string

	// BuildChatBody builds the provider-specific request body for a
	// system + user prompt pair.
	BuildChatBody(system, user string) map[string]interface{}

	// ExtractResponseText extracts the model's text from the provider
	// response format.
	ExtractResponseText(data map[string]interface{}) (string, error)

	// SetAuthHeaders sets authentication and content headers.
	SetAuthHeaders(req *http.Request)

	// ValidateConfig checks if provider configuration is valid.
	ValidateConfig() error
}

// Config carries the settings shared by every provider.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// New constructs the provider named by providerType.
func New(providerType string, cfg Config) (Provider, error) {
	switch ProviderType(providerType) {
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, nil), nil
	case ProviderTypeGemini:
		return NewGeminiProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case ProviderTypeMistral:
		return NewMistralProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerType)
	}
}

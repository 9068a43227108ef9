package config

import (
	"strings"
	"testing"

	"github.com/huetone/chromind/providers"
)

func TestValidatePort(t *testing.T) {
	testCases := []struct {
		name      string
		port      string
		fieldName string
		expectErr bool
		errString string
	}{
		{
			name:      "valid port",
			port:      ":8080",
			fieldName: "ListenPort",
			expectErr: false,
		},
		{
			name:      "empty port",
			port:      "",
			fieldName: "ListenPort",
			expectErr: true,
			errString: "ListenPort: port cannot be empty",
		},
		{
			name:      "no colon",
			port:      "8080",
			fieldName: "ListenPort",
			expectErr: true,
			errString: "ListenPort: port must be in format ':PORT' where PORT is numeric (current value: 8080)",
		},
		{
			name:      "non-numeric",
			port:      ":abcd",
			fieldName: "ListenPort",
			expectErr: true,
			errString: "ListenPort: port must be in format ':PORT' where PORT is numeric (current value: :abcd)",
		},
		{
			name:      "port out of range (low)",
			port:      ":0",
			fieldName: "ListenPort",
			expectErr: true,
			errString: "ListenPort: port must be between 1 and 65535 (current value: 0)",
		},
		{
			name:      "port out of range (high)",
			port:      ":65536",
			fieldName: "ListenPort",
			expectErr: true,
			errString: "ListenPort: port must be between 1 and 65535 (current value: 65536)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePort(tc.port, tc.fieldName)
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestValidateProviderType(t *testing.T) {
	testCases := []struct {
		name         string
		providerType string
		expectErr    bool
		errString    string
	}{
		{name: "openai", providerType: "openai", expectErr: false},
		{name: "anthropic", providerType: "anthropic", expectErr: false},
		{name: "gemini", providerType: "gemini", expectErr: false},
		{name: "mistral", providerType: "mistral", expectErr: false},
		{
			name:         "unsupported",
			providerType: "bedrock",
			expectErr:    true,
			errString:    "Provider.Type: unsupported provider type (current value: bedrock)",
		},
		{
			name:         "empty",
			providerType: "",
			expectErr:    true,
			errString:    "Provider.Type: unsupported provider type (current value: )",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateProviderType(tc.providerType, "Provider.Type")
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestValidateEmbeddingBackend(t *testing.T) {
	if err := validateEmbeddingBackend("feature", "Embedding.Backend"); err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
	if err := validateEmbeddingBackend("onnx", "Embedding.Backend"); err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
	err := validateEmbeddingBackend("word2vec", "Embedding.Backend")
	if err == nil {
		t.Fatal("expected an error, but got nil")
	}
	want := "Embedding.Backend: backend must be 'feature' or 'onnx' (current value: word2vec)"
	if err.Error() != want {
		t.Errorf("expected error string '%s', but got '%s'", want, err.Error())
	}
}

// The default BaseURL must stay empty: each provider constructor applies its
// own vendor base URL, and a preset one would be carried over when the
// provider type is switched, pointing the call at the wrong host.
func TestDefaultConfigProviderChatURLs(t *testing.T) {
	testCases := []struct {
		providerType string
		wantURL      string
	}{
		{providerType: "openai", wantURL: "https://api.openai.com/v1/chat/completions"},
		{providerType: "anthropic", wantURL: "https://api.anthropic.com/v1/messages"},
		{providerType: "mistral", wantURL: "https://api.mistral.ai/v1/chat/completions"},
		{providerType: "gemini", wantURL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent?key=test-key"},
	}

	for _, tc := range testCases {
		t.Run(tc.providerType, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Provider.Type = tc.providerType

			p, err := providers.New(cfg.Provider.Type, providers.Config{
				BaseURL: cfg.Provider.BaseURL,
				APIKey:  "test-key",
				Model:   cfg.Provider.Model,
			})
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if got := p.ChatURL(); got != tc.wantURL {
				t.Errorf("expected chat URL '%s', but got '%s'", tc.wantURL, got)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	newDefaultConfig := func() *Config {
		return DefaultConfig()
	}

	testCases := []struct {
		name      string
		config    *Config
		expectErr bool
		errString string
	}{
		{
			name:      "valid default config",
			config:    newDefaultConfig(),
			expectErr: false,
		},
		{
			name: "invalid listen port",
			config: func() *Config {
				c := newDefaultConfig()
				c.ListenPort = "invalid"
				return c
			}(),
			expectErr: true,
			errString: "ListenPort: port must be in format ':PORT' where PORT is numeric (current value: invalid)",
		},
		{
			name: "zero batch limit",
			config: func() *Config {
				c := newDefaultConfig()
				c.BatchLimit = 0
				return c
			}(),
			expectErr: true,
			errString: "BatchLimit: must be at least 1 (current value: 0)",
		},
		{
			name: "provider enabled without key",
			config: func() *Config {
				c := newDefaultConfig()
				c.Provider.Enabled = true
				return c
			}(),
			expectErr: true,
			errString: "Provider.APIKey: key cannot be empty when the provider is enabled",
		},
		{
			name: "database enabled without host",
			config: func() *Config {
				c := newDefaultConfig()
				c.Database.Enabled = true
				c.Database.Host = ""
				return c
			}(),
			expectErr: true,
			errString: "Database.Host: host cannot be empty when the database is enabled",
		},
		{
			name: "onnx backend without model dir",
			config: func() *Config {
				c := newDefaultConfig()
				c.Embedding.Backend = "onnx"
				c.Embedding.ModelDir = ""
				return c
			}(),
			expectErr: true,
			errString: "Embedding.ModelDir: model directory cannot be empty for the onnx backend",
		},
		{
			name: "multiple errors",
			config: func() *Config {
				c := newDefaultConfig()
				c.ListenPort = "invalid"
				c.BatchLimit = 0
				return c
			}(),
			expectErr: true,
			errString: "ListenPort: port must be in format ':PORT' where PORT is numeric (current value: invalid); BatchLimit: must be at least 1 (current value: 0)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.ValidateConfig()
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					// Use containment for multiple errors as order is not guaranteed
					if len(strings.Split(tc.errString, ";")) > 1 {
						for _, subErr := range strings.Split(tc.errString, "; ") {
							if !strings.Contains(err.Error(), subErr) {
								t.Errorf("expected error to contain '%s', but got '%s'", subErr, err.Error())
							}
						}
					} else {
						t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
					}
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

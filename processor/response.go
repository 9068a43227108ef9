package processor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata is the structured payload the model is asked to return for a
// color.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source,omitempty"`
}

// MaxTags caps how many mood tags a record keeps regardless of how chatty
// the model was.
const MaxTags = 8

// ParseMetadata extracts and validates color metadata from raw model output.
// Models wrap JSON in markdown fences or prose more often than not, so the
// parser locates the first JSON object rather than trusting the whole body.
func ParseMetadata(raw string) (Metadata, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return Metadata{}, fmt.Errorf("no JSON object in model output")
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse model output: %w", err)
	}

	meta.Name = strings.TrimSpace(meta.Name)
	meta.Description = strings.TrimSpace(meta.Description)
	if meta.Name == "" {
		return Metadata{}, fmt.Errorf("model output missing required field %q", "name")
	}

	tags := meta.Tags[:0]
	for _, tag := range meta.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	meta.Tags = tags

	return meta, nil
}

// stripFences removes markdown code fences, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

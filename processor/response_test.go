package processor

import (
	"reflect"
	"testing"
)

func TestParseMetadata(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      Metadata
		expectErr bool
	}{
		{
			name:  "plain json",
			input: `{"name":"Dusk Blue","description":"A muted evening blue.","tags":["calm","cool"]}`,
			want:  Metadata{Name: "Dusk Blue", Description: "A muted evening blue.", Tags: []string{"calm", "cool"}},
		},
		{
			name:  "fenced json",
			input: "```json\n{\"name\":\"Moss\",\"description\":\"Earthy green.\",\"tags\":[\"organic\"]}\n```",
			want:  Metadata{Name: "Moss", Description: "Earthy green.", Tags: []string{"organic"}},
		},
		{
			name:  "fence without language",
			input: "```\n{\"name\":\"Ember\",\"tags\":[]}\n```",
			want:  Metadata{Name: "Ember", Tags: []string{}},
		},
		{
			name:  "prose around the object",
			input: "Here is the metadata you asked for:\n{\"name\":\"Slate\",\"tags\":[\"neutral\"]}\nHope that helps!",
			want:  Metadata{Name: "Slate", Tags: []string{"neutral"}},
		},
		{
			name:  "tags normalized and blank dropped",
			input: `{"name":"Sand","tags":[" Warm ","", "BEACH"]}`,
			want:  Metadata{Name: "Sand", Tags: []string{"warm", "beach"}},
		},
		{
			name:      "missing name",
			input:     `{"description":"nameless"}`,
			expectErr: true,
		},
		{
			name:      "whitespace name",
			input:     `{"name":"   "}`,
			expectErr: true,
		},
		{
			name:      "no json at all",
			input:     "I cannot help with that.",
			expectErr: true,
		},
		{
			name:      "broken json",
			input:     `{"name":"Oops`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMetadata(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseMetadataTagCap(t *testing.T) {
	input := `{"name":"Busy","tags":["a","b","c","d","e","f","g","h","i","j"]}`
	got, err := ParseMetadata(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Tags) != MaxTags {
		t.Errorf("got %d tags, want cap of %d", len(got.Tags), MaxTags)
	}
}

package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestText(t *testing.T) {
	set, err := Deduplicate([]Batch{{Query: "q", Results: []SearchResult{
		{Title: "Acme", URL: "https://acme", Content: "Acme makes widgets", RawContent: "Widgets since 1950"},
	}}}, Options{MaxTokensPerSource: 100})
	require.NoError(t, err)

	want := "Sources:\n\n" +
		"Source Acme:\n===\n" +
		"URL: https://acme\n===\n" +
		"Most relevant content from source: Acme makes widgets\n===\n" +
		"Text content from source: Widgets since 1950\n==="
	assert.Equal(t, want, set.Text())
}

func TestTextWithRawContent(t *testing.T) {
	set, err := Deduplicate([]Batch{{Query: "q", Results: []SearchResult{
		{URL: "https://acme", RawContent: strings.Repeat("a", 10)},
	}}}, Options{MaxTokensPerSource: 1, IncludeRawContent: true})
	require.NoError(t, err)

	text := set.Text()
	assert.Contains(t, text, "Source N/A:")
	assert.Contains(t, text, "Full source content limited to 1 tokens: aaaa"+TruncationMarker)
	assert.NotContains(t, text, "Text content from source")
}

func TestParts(t *testing.T) {
	segments := []string{"data:image/png;base64,1", "data:image/png;base64,2", "data:image/png;base64,3"}
	batches := []Batch{{Query: "q", Results: []SearchResult{
		{URL: "https://a", Title: "A", ScreenshotSegments: segments},
		{URL: "https://b", Title: "B"},
	}}}

	tests := []struct {
		name       string
		images     int
		wantImages int
	}{
		{"Default cap", 0, 3},
		{"Explicit cap", 2, 2},
		{"Images disabled", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Deduplicate(batches, Options{MaxTokensPerSource: 10, ImagesPerSource: tt.images})
			require.NoError(t, err)

			var texts, images int
			for _, p := range set.Parts() {
				switch part := p.(type) {
				case llms.TextContent:
					texts++
				case llms.ImageURLContent:
					images++
					assert.True(t, strings.HasPrefix(part.URL, "data:image/png;base64,"))
				}
			}
			assert.Equal(t, 3, texts)
			assert.Equal(t, tt.wantImages, images)
		})
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain text", "hello   world", "hello world"},
		{"Skips scripts", "<p>a</p><script>var x = 1;</script><noscript>enable js</noscript><p>b</p>", "a\nb"},
		{"Drops empty lines", "<div>\n\n  </div><span> c </span>", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.in))
		})
	}
}

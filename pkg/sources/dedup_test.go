package sources

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(url, title string) SearchResult {
	return SearchResult{Title: title, URL: url, Content: "snippet for " + title, RawContent: "page text of " + title}
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name     string
		batches  []Batch
		wantURLs []string
	}{
		{
			name:     "Empty input",
			batches:  nil,
			wantURLs: []string{},
		},
		{
			name: "Two queries with one overlap",
			batches: []Batch{
				{Query: "q1", Results: []SearchResult{result("https://a", "A"), result("https://b", "B"), result("https://c", "C")}},
				{Query: "q2", Results: []SearchResult{result("https://c", "C2"), result("https://d", "D"), result("https://e", "E")}},
			},
			wantURLs: []string{"https://a", "https://b", "https://c", "https://d", "https://e"},
		},
		{
			name: "Empty URLs are skipped",
			batches: []Batch{
				{Query: "q1", Results: []SearchResult{result("", "nameless"), result("https://a", "A")}},
			},
			wantURLs: []string{"https://a"},
		},
		{
			name: "Query without results is valid",
			batches: []Batch{
				{Query: "q1", Results: nil},
				{Query: "q2", Results: []SearchResult{result("https://a", "A")}},
			},
			wantURLs: []string{"https://a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Deduplicate(tt.batches, Options{MaxTokensPerSource: 100})
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantURLs), set.Len())
			assert.ElementsMatch(t, tt.wantURLs, set.URLs())
		})
	}
}

func TestDeduplicateFirstSeenWins(t *testing.T) {
	batches := []Batch{
		{Query: "q1", Results: []SearchResult{{URL: "https://x", Title: "first", Content: "one"}}},
		{Query: "q2", Results: []SearchResult{{URL: "https://x", Title: "second", Content: "two"}}},
	}

	set, err := Deduplicate(batches, Options{MaxTokensPerSource: 10})
	require.NoError(t, err)

	got, ok := set.Get("https://x")
	require.True(t, ok)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "one", got.Content)
}

func TestDeduplicateDoesNotMutateInput(t *testing.T) {
	long := strings.Repeat("x", 100)
	batches := []Batch{{Query: "q", Results: []SearchResult{{URL: "https://x", RawContent: long, ScreenshotSegments: []string{"a"}}}}}

	set, err := Deduplicate(batches, Options{MaxTokensPerSource: 2})
	require.NoError(t, err)

	assert.Equal(t, long, batches[0].Results[0].RawContent)
	got, _ := set.Get("https://x")
	got.ScreenshotSegments[0] = "changed"
	assert.Equal(t, "a", batches[0].Results[0].ScreenshotSegments[0])
}

func TestDeduplicateErrors(t *testing.T) {
	_, err := Deduplicate(nil, Options{MaxTokensPerSource: 0})
	assert.ErrorIs(t, err, ErrInvalidTokenBudget)

	_, err = Deduplicate([]Batch{{}}, Options{MaxTokensPerSource: 10})
	assert.ErrorIs(t, err, ErrMalformedBatch)
}

func TestTruncation(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxTokens int
		want      string
	}{
		{"Under limit", "short", 10, "short"},
		{"Exactly at limit", strings.Repeat("a", 8), 2, strings.Repeat("a", 8)},
		{"Over limit", strings.Repeat("a", 9), 2, strings.Repeat("a", 8) + TruncationMarker},
		{"Multibyte runes", strings.Repeat("ü", 12), 2, strings.Repeat("ü", 8) + TruncationMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Deduplicate([]Batch{{Query: "q", Results: []SearchResult{{URL: "https://x", RawContent: tt.content}}}},
				Options{MaxTokensPerSource: tt.maxTokens})
			require.NoError(t, err)
			got, _ := set.Get("https://x")
			assert.Equal(t, tt.want, got.RawContent)
			assert.True(t, utf8.ValidString(got.RawContent))
		})
	}
}

func TestTruncatedLengthIsLimitPlusMarker(t *testing.T) {
	for _, tokens := range []int{1, 10, 250} {
		t.Run(fmt.Sprintf("tokens=%d", tokens), func(t *testing.T) {
			got := Truncate(strings.Repeat("b", tokens*CharsPerToken*3), tokens*CharsPerToken)
			assert.Equal(t, tokens*CharsPerToken+len(TruncationMarker), len(got))
		})
	}
}

func TestDeduplicateCutsTextEndingWithMarker(t *testing.T) {
	// over the 8 rune limit but shorter than limit plus marker
	content := "cc" + TruncationMarker
	set, err := Deduplicate([]Batch{{Query: "q", Results: []SearchResult{{URL: "https://x", RawContent: content}}}},
		Options{MaxTokensPerSource: 2})
	require.NoError(t, err)

	got, _ := set.Get("https://x")
	assert.Equal(t, content[:8]+TruncationMarker, got.RawContent)
	assert.Equal(t, 8+len(TruncationMarker), len(got.RawContent))
	assert.True(t, got.Truncated)
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	opts := Options{MaxTokensPerSource: 5}
	batches := []Batch{
		{Query: "q1", Results: []SearchResult{
			{URL: "https://a", Title: "A", RawContent: strings.Repeat("long text ", 20)},
			{URL: "https://b", Title: "B", RawContent: "<html><body><p>Hello</p><script>x()</script></body></html>"},
		}},
		{Query: "q2", Results: []SearchResult{{URL: "https://a", Title: "A again"}}},
	}

	first, err := Deduplicate(batches, opts)
	require.NoError(t, err)
	second, err := Deduplicate([]Batch{first.Batch()}, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Results(), second.Results())
	assert.Equal(t, first.Text(), second.Text())
}

func TestDeduplicateNormalizesHTML(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>Acme</title><style>p{}</style></head>
<body><p>  Acme   sells </p><script>track()</script><div>widgets</div></body></html>`

	set, err := Deduplicate([]Batch{{Query: "q", Results: []SearchResult{{URL: "https://acme", RawContent: page}}}},
		Options{MaxTokensPerSource: 100})
	require.NoError(t, err)

	got, _ := set.Get("https://acme")
	assert.Equal(t, "Acme\nAcme sells\nwidgets", got.RawContent)
}

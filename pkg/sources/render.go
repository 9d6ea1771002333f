package sources

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const sourcesHeader = "Sources:\n\n"

func (s *SourceSet) formatSource(r SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source %s:\n===\n", orNA(r.Title))
	fmt.Fprintf(&b, "URL: %s\n===\n", orNA(r.URL))
	fmt.Fprintf(&b, "Most relevant content from source: %s\n===\n", orNA(r.Content))
	if s.opts.IncludeRawContent {
		fmt.Fprintf(&b, "Full source content limited to %d tokens: %s\n\n", s.opts.MaxTokensPerSource, r.RawContent)
	} else {
		fmt.Fprintf(&b, "Text content from source: %s\n===\n", r.RawContent)
	}
	return b.String()
}

// Text renders the set as a single block of LLM context.
func (s *SourceSet) Text() string {
	var b strings.Builder
	b.WriteString(sourcesHeader)
	for _, r := range s.Results() {
		b.WriteString(s.formatSource(r))
	}
	return strings.TrimSpace(b.String())
}

// Parts renders the set as multimodal message parts: one text part per
// source followed by its screenshot segments.
func (s *SourceSet) Parts() []llms.ContentPart {
	parts := []llms.ContentPart{llms.TextPart(sourcesHeader)}
	limit := s.opts.imagesPerSource()
	for _, r := range s.Results() {
		parts = append(parts, llms.TextPart(s.formatSource(r)))
		for i, segment := range r.ScreenshotSegments {
			if i >= limit {
				break
			}
			parts = append(parts, llms.ImageURLPart(segment))
		}
	}
	return parts
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/market-research/pkg/sources"
)

// TextSplitter cuts archived page text into chunks for embedding.
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter splits on paragraph, line and word
// boundaries in that order.
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	return &TextSplitter{splitter: ts}
}

// SplitText splits text and drops blank chunks.
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	chunks, err := ts.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// SplitSource splits the page text of r, falling back to the snippet when
// the page could not be fetched.
func (ts *TextSplitter) SplitSource(r sources.SearchResult) ([]string, error) {
	text := r.RawContent
	if text == "" || strings.HasPrefix(text, sources.FetchErrorPrefix) {
		text = r.Content
	}
	return ts.SplitText(text)
}

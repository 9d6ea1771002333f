package sources

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidTokenBudget = errors.New("max tokens per source must be positive")
	ErrMalformedBatch     = errors.New("malformed search batch")
)

// SourceSet is a url-keyed collection of search results where the first
// occurrence of a URL wins. Insertion order is kept so renderings are
// deterministic.
type SourceSet struct {
	opts  Options
	order []string
	byURL map[string]SearchResult
}

// Deduplicate flattens batches into a SourceSet. Results without a URL are
// skipped, page HTML is reduced to text and truncated to the token budget.
// The input batches are never modified.
func Deduplicate(batches []Batch, opts Options) (*SourceSet, error) {
	if opts.MaxTokensPerSource <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTokenBudget, opts.MaxTokensPerSource)
	}

	set := &SourceSet{
		opts:  opts,
		byURL: make(map[string]SearchResult),
	}

	for i, b := range batches {
		if b.Results == nil && b.Query == "" {
			return nil, fmt.Errorf("%w: batch %d has neither query nor results", ErrMalformedBatch, i)
		}
		for _, r := range b.Results {
			if r.URL == "" {
				continue
			}
			if _, seen := set.byURL[r.URL]; seen {
				continue
			}
			set.byURL[r.URL] = normalize(r, opts.charLimit())
			set.order = append(set.order, r.URL)
		}
	}

	return set, nil
}

func normalize(r SearchResult, limit int) SearchResult {
	out := r
	if r.ScreenshotSegments != nil {
		out.ScreenshotSegments = append([]string(nil), r.ScreenshotSegments...)
	}
	content := r.RawContent
	if looksLikeHTML(content) {
		content = ExtractText(content)
	}
	if r.Truncated && alreadyTruncated(content, limit) {
		out.RawContent = content
		return out
	}
	out.RawContent = Truncate(content, limit)
	out.Truncated = utf8.RuneCountInString(content) > limit
	return out
}

// alreadyTruncated reports whether s is the output of Truncate for limit.
func alreadyTruncated(s string, limit int) bool {
	return strings.HasSuffix(s, TruncationMarker) &&
		utf8.RuneCountInString(s) == limit+utf8.RuneCountInString(TruncationMarker)
}

// Truncate cuts s to limit runes and appends TruncationMarker.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + TruncationMarker
}

func (s *SourceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *SourceSet) Get(url string) (SearchResult, bool) {
	if s == nil {
		return SearchResult{}, false
	}
	r, ok := s.byURL[url]
	return r, ok
}

// Results returns a copy of the stored results.
func (s *SourceSet) Results() []SearchResult {
	if s == nil {
		return nil
	}
	out := make([]SearchResult, 0, len(s.order))
	for _, u := range s.order {
		out = append(out, s.byURL[u])
	}
	return out
}

// URLs returns the unique source URLs.
func (s *SourceSet) URLs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Batch packs the set back into a single batch, which can be fed to
// Deduplicate again.
func (s *SourceSet) Batch() Batch {
	return Batch{Query: "deduplicated", Results: s.Results()}
}

func (s *SourceSet) Options() Options {
	if s == nil {
		return Options{}
	}
	return s.opts
}

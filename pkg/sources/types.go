package sources

// SearchResult is a single organic hit from a search provider, optionally
// enriched with the scraped page.
type SearchResult struct {
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	Content            string   `json:"content"`
	RawContent         string   `json:"raw_content,omitempty"`
	ScreenshotSegments []string `json:"screenshot_segments,omitempty"`
	// Truncated is set by Deduplicate when RawContent was cut to the budget.
	Truncated bool `json:"truncated,omitempty"`
}

// Batch is the response of a provider for one query.
type Batch struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Options controls deduplication and rendering.
type Options struct {
	// MaxTokensPerSource bounds the page text kept per source. Tokens are
	// approximated as CharsPerToken characters.
	MaxTokensPerSource int
	// IncludeRawContent renders the page text as full source content
	// instead of the shorter text excerpt label.
	IncludeRawContent bool
	// ImagesPerSource caps screenshot segments rendered per source.
	// Zero selects DefaultImagesPerSource, negative disables images.
	ImagesPerSource int
}

const (
	TruncationMarker = "... [truncated]"
	// FetchErrorPrefix starts the placeholder content of pages that could
	// not be fetched.
	FetchErrorPrefix       = "Error fetching the URL: "
	CharsPerToken          = 4
	DefaultImagesPerSource = 5
)

func (o Options) charLimit() int {
	return o.MaxTokensPerSource * CharsPerToken
}

func (o Options) imagesPerSource() int {
	switch {
	case o.ImagesPerSource < 0:
		return 0
	case o.ImagesPerSource == 0:
		return DefaultImagesPerSource
	}
	return o.ImagesPerSource
}

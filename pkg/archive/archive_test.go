package archive

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/sources"
	"github.com/mikeboe/market-research/pkg/splitter"
	"github.com/mikeboe/market-research/pkg/vectorstore"
	"github.com/mikeboe/market-research/pkg/workflow"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 1}
	}
	return vecs, nil
}

// memStore keeps chunks in memory and matches filters by plain key equality.
type memStore struct {
	mu     sync.Mutex
	chunks []vectorstore.Chunk
	filter map[string]any
}

func (m *memStore) AddChunks(_ context.Context, chunks []vectorstore.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memStore) SimilaritySearch(_ context.Context, _ []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	m.filter = filter
	var out []vectorstore.Match
	for _, c := range m.matching(filter) {
		if len(out) == topK {
			break
		}
		out = append(out, vectorstore.Match{Chunk: c, Score: 0.9})
	}
	return out, nil
}

func (m *memStore) Find(_ context.Context, filter map[string]any) ([]vectorstore.Chunk, error) {
	m.filter = filter
	return m.matching(filter), nil
}

func (m *memStore) matching(filter map[string]any) []vectorstore.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []vectorstore.Chunk
	for _, c := range m.chunks {
		ok := true
		for k, v := range filter {
			if c.Metadata[k] != v {
				ok = false
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func sourceSet(t *testing.T, results ...sources.SearchResult) *sources.SourceSet {
	t.Helper()
	set, err := sources.Deduplicate([]sources.Batch{{Query: "q", Results: results}}, sources.Options{MaxTokensPerSource: 1000})
	require.NoError(t, err)
	return set
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.Observe(workflow.Event{Pipeline: "competitors", Message: "no sources"})
	c.Observe(workflow.Event{Pipeline: "competitors", Entity: "Acme", Sources: sourceSet(t,
		sources.SearchResult{URL: "https://acme.com", Content: "a"},
		sources.SearchResult{URL: "https://shared.com", Content: "s"},
	)})
	c.Observe(workflow.Event{Pipeline: "competitors", Entity: "Beta", Sources: sourceSet(t,
		sources.SearchResult{URL: "https://shared.com", Content: "s"},
		sources.SearchResult{URL: "https://beta.com", Content: "b"},
	)})
	c.Observe(workflow.Event{Pipeline: "competitors", Entity: "Gamma", Sources: sourceSet(t,
		sources.SearchResult{URL: "https://acme.com", Content: "a"},
	)})

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Acme", entries[0].Entity)
	assert.Len(t, entries[0].Sources, 2)
	assert.Equal(t, "Beta", entries[1].Entity)
	require.Len(t, entries[1].Sources, 1)
	assert.Equal(t, "https://beta.com", entries[1].Sources[0].URL)
}

func TestIndexAndRetrieve(t *testing.T) {
	store := &memStore{}
	embedder := &fakeEmbedder{}
	ix := NewIndexer(splitter.NewRecursiveCharacterTextSplitter(40, 0), embedder, store)

	entries := []Entry{{
		Pipeline: "competitors",
		Entity:   "Acme",
		Sources: []sources.SearchResult{
			{Title: "Acme pricing", URL: "https://acme.com/pricing", Content: "snippet", RawContent: "Acme Pro costs 10 dollars a month.\n\nAcme Team costs 25 dollars a month."},
			{Title: "Broken", URL: "https://broken.com", Content: "broken snippet", RawContent: sources.FetchErrorPrefix + "timeout"},
			{Title: "Empty", URL: "https://empty.com"},
		},
	}}

	n, err := ix.Index(context.Background(), "job-1", entries)
	require.NoError(t, err)
	assert.Equal(t, len(store.chunks), n)
	assert.GreaterOrEqual(t, n, 3)
	assert.Equal(t, 2, embedder.calls, "empty sources are not embedded")

	for _, c := range store.chunks {
		assert.Equal(t, "job-1", c.Metadata[KeyJobID])
		assert.Equal(t, "Acme", c.Metadata[KeyEntity])
		assert.NotContains(t, c.Content, sources.FetchErrorPrefix)
	}

	r := NewRetriever(embedder, store)

	passages, err := r.BySource(context.Background(), "job-1", "https://broken.com")
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "broken snippet", passages[0].Content)
	assert.Equal(t, "Broken", passages[0].Title)

	passages, err = r.Search(context.Background(), "job-1", "pricing", 2)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, map[string]any{KeyJobID: "job-1"}, store.filter)

	passages, err = r.Search(context.Background(), "other-job", "pricing", 0)
	require.NoError(t, err)
	assert.Empty(t, passages)

	_, err = r.Search(context.Background(), "", "pricing", 0)
	require.NoError(t, err)
	assert.Empty(t, store.filter, "empty job id searches everything")
}

func TestIndexEmbeddingFailure(t *testing.T) {
	embedErr := errors.New("quota")
	ix := NewIndexer(splitter.NewRecursiveCharacterTextSplitter(100, 0), &fakeEmbedder{err: embedErr}, &memStore{})

	_, err := ix.Index(context.Background(), "job-1", []Entry{{Sources: []sources.SearchResult{{URL: "https://a.com", RawContent: "text"}}}})
	assert.ErrorIs(t, err, embedErr)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &memStore{})
	_, err := r.Search(context.Background(), "job-1", " ", 3)
	assert.Error(t, err)
}

func TestFormatPassages(t *testing.T) {
	out := FormatPassages([]Passage{
		{SourceURL: "https://acme.com", Title: "Acme", Entity: "Acme", Content: "Pro plan "},
		{SourceURL: "https://beta.com", Content: "Beta plan"},
		{SourceURL: "https://acme.com", Content: "Team plan"},
	})

	assert.Equal(t, 2, strings.Count(out, "# Source:"))
	assert.Contains(t, out, "# Source: https://acme.com\nTitle: Acme\nEntity: Acme\n\n - Pro plan\n - Team plan\n")
	assert.Contains(t, out, "# Source: https://beta.com\n\n - Beta plan\n")
	assert.Equal(t, "No matching sources found.", FormatPassages(nil))
}

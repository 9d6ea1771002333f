package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/vectorstore"
)

type staticEmbedder struct{}

func (staticEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (staticEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// recordingStore returns its chunks for every lookup and records the filters.
type recordingStore struct {
	chunks  []vectorstore.Chunk
	filters []map[string]any
	topK    int
}

func (s *recordingStore) AddChunks(ctx context.Context, chunks []vectorstore.Chunk) error {
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *recordingStore) SimilaritySearch(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	s.filters = append(s.filters, filter)
	s.topK = topK
	matches := make([]vectorstore.Match, len(s.chunks))
	for i, c := range s.chunks {
		matches[i] = vectorstore.Match{Chunk: c, Score: 0.9}
	}
	return matches, nil
}

func (s *recordingStore) Find(ctx context.Context, filter map[string]any) ([]vectorstore.Chunk, error) {
	s.filters = append(s.filters, filter)
	return s.chunks, nil
}

func newStore() *recordingStore {
	return &recordingStore{chunks: []vectorstore.Chunk{
		{Content: "Acme charges $10 per month.", Metadata: map[string]any{
			archive.KeySourceURL: "https://acme.example/pricing", archive.KeyTitle: "Pricing", archive.KeyEntity: "Acme",
		}},
		{Content: "Annual plans get two months free.", Metadata: map[string]any{
			archive.KeySourceURL: "https://acme.example/pricing", archive.KeyTitle: "Pricing", archive.KeyEntity: "Acme",
		}},
	}}
}

func TestSearchSources(t *testing.T) {
	store := newStore()
	r := archive.NewRetriever(staticEmbedder{}, store)

	res, err := SearchSources(context.Background(), r, SearchSourcesArgs{Query: "acme pricing", JobID: "job-1"})
	require.NoError(t, err)

	want := "# Source: https://acme.example/pricing\n" +
		"Title: Pricing\n" +
		"Entity: Acme\n\n" +
		" - Acme charges $10 per month.\n" +
		" - Annual plans get two months free.\n"
	assert.Equal(t, want, res.Results)
	assert.Equal(t, archive.DefaultTopK, store.topK)
	assert.Equal(t, map[string]any{archive.KeyJobID: "job-1"}, store.filters[0])
}

func TestSearchSourcesRejectsEmptyQuery(t *testing.T) {
	r := archive.NewRetriever(staticEmbedder{}, newStore())
	_, err := SearchSources(context.Background(), r, SearchSourcesArgs{Query: " "})
	assert.Error(t, err)
}

func TestFindSourceByURL(t *testing.T) {
	tests := []struct {
		name  string
		jobID string
		want  map[string]any
	}{
		{"scoped to job", "job-1", map[string]any{archive.KeySourceURL: "https://acme.example/pricing", archive.KeyJobID: "job-1"}},
		{"all jobs", "", map[string]any{archive.KeySourceURL: "https://acme.example/pricing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			r := archive.NewRetriever(staticEmbedder{}, store)

			res, err := FindSourceByURL(context.Background(), r, FindSourceArgs{URL: "https://acme.example/pricing", JobID: tt.jobID})
			require.NoError(t, err)
			assert.Contains(t, res.Results, "Annual plans get two months free.")
			assert.Equal(t, tt.want, store.filters[0])
		})
	}
}

func TestFindSourceByURLNoMatches(t *testing.T) {
	r := archive.NewRetriever(staticEmbedder{}, &recordingStore{})
	res, err := FindSourceByURL(context.Background(), r, FindSourceArgs{URL: "https://missing.example"})
	require.NoError(t, err)
	assert.Equal(t, "No matching sources found.", res.Results)
}

// Package archive stores the sources a job collected as embedded chunks
// and retrieves them for chat and MCP tools.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mikeboe/market-research/pkg/sources"
	"github.com/mikeboe/market-research/pkg/vectorstore"
	"github.com/mikeboe/market-research/pkg/workflow"
)

// Metadata keys stored with every chunk.
const (
	KeyJobID     = "job_id"
	KeyPipeline  = "pipeline"
	KeyEntity    = "entity"
	KeySourceURL = "source_url"
	KeyTitle     = "title"
)

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type Splitter interface {
	SplitSource(r sources.SearchResult) ([]string, error)
}

type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []vectorstore.Chunk) error
	SimilaritySearch(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorstore.Match, error)
	Find(ctx context.Context, filter map[string]any) ([]vectorstore.Chunk, error)
}

// Entry is a group of sources collected for one entity of a run.
type Entry struct {
	Pipeline string
	Entity   string
	Sources  []sources.SearchResult
}

// Collector gathers the sources reported through workflow events. Each URL
// is kept once, under the entity that reported it first.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	seen    map[string]bool
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]bool)}
}

// Observe records the sources of e, if any. It is safe for concurrent use.
func (c *Collector) Observe(e workflow.Event) {
	if e.Sources == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry{Pipeline: e.Pipeline, Entity: e.Entity}
	for _, r := range e.Sources.Results() {
		if c.seen[r.URL] {
			continue
		}
		c.seen[r.URL] = true
		entry.Sources = append(entry.Sources, r)
	}
	if len(entry.Sources) > 0 {
		c.entries = append(c.entries, entry)
	}
}

func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

type Indexer struct {
	Splitter Splitter
	Embedder Embedder
	Store    ChunkStore
	Logger   *slog.Logger
}

func NewIndexer(splitter Splitter, embedder Embedder, store ChunkStore) *Indexer {
	return &Indexer{
		Splitter: splitter,
		Embedder: embedder,
		Store:    store,
		Logger:   slog.Default(),
	}
}

// Index chunks, embeds and stores every source of entries under jobID and
// returns the number of stored chunks. A source that fails to split is
// skipped; embedding and storage errors abort.
func (ix *Indexer) Index(ctx context.Context, jobID string, entries []Entry) (int, error) {
	total := 0
	for _, entry := range entries {
		for _, src := range entry.Sources {
			texts, err := ix.Splitter.SplitSource(src)
			if err != nil {
				ix.logger().Warn("Failed to split source", "url", src.URL, "error", err)
				continue
			}
			if len(texts) == 0 {
				continue
			}

			vecs, err := ix.Embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return total, fmt.Errorf("embedding %s: %w", src.URL, err)
			}
			if len(vecs) != len(texts) {
				return total, fmt.Errorf("embedding %s: got %d vectors for %d chunks", src.URL, len(vecs), len(texts))
			}

			chunks := make([]vectorstore.Chunk, len(texts))
			for i, text := range texts {
				chunks[i] = vectorstore.Chunk{
					Content: text,
					Metadata: map[string]any{
						KeyJobID:     jobID,
						KeyPipeline:  entry.Pipeline,
						KeyEntity:    entry.Entity,
						KeySourceURL: src.URL,
						KeyTitle:     src.Title,
						"chunk":      i,
					},
					Embedding: vecs[i],
				}
			}
			if err := ix.Store.AddChunks(ctx, chunks); err != nil {
				return total, fmt.Errorf("storing %s: %w", src.URL, err)
			}
			total += len(chunks)
		}
	}
	ix.logger().Info("Archived sources", "job_id", jobID, "chunks", total)
	return total, nil
}

func (ix *Indexer) logger() *slog.Logger {
	if ix.Logger != nil {
		return ix.Logger
	}
	return slog.Default()
}

// Passage is a retrieved chunk with its source.
type Passage struct {
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title,omitempty"`
	Entity    string  `json:"entity,omitempty"`
	Content   string  `json:"content"`
	Score     float64 `json:"score,omitempty"`
}

type Retriever struct {
	Embedder Embedder
	Store    ChunkStore
}

func NewRetriever(embedder Embedder, store ChunkStore) *Retriever {
	return &Retriever{Embedder: embedder, Store: store}
}

const DefaultTopK = 5

// Search returns the passages most similar to query. An empty jobID
// searches the sources of every job.
func (r *Retriever) Search(ctx context.Context, jobID, query string, topK int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	vec, err := r.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.Store.SimilaritySearch(ctx, vec, topK, scope(jobID, nil))
	if err != nil {
		return nil, err
	}
	passages := make([]Passage, len(matches))
	for i, m := range matches {
		passages[i] = passage(m.Chunk)
		passages[i].Score = m.Score
	}
	return passages, nil
}

// BySource returns every archived passage of url in chunk order.
func (r *Retriever) BySource(ctx context.Context, jobID, url string) ([]Passage, error) {
	chunks, err := r.Store.Find(ctx, scope(jobID, map[string]any{KeySourceURL: url}))
	if err != nil {
		return nil, err
	}
	passages := make([]Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = passage(c)
	}
	return passages, nil
}

func scope(jobID string, filter map[string]any) map[string]any {
	if filter == nil {
		filter = map[string]any{}
	}
	if jobID != "" {
		filter[KeyJobID] = jobID
	}
	return filter
}

func passage(c vectorstore.Chunk) Passage {
	str := func(key string) string {
		s, _ := c.Metadata[key].(string)
		return s
	}
	return Passage{
		SourceURL: str(KeySourceURL),
		Title:     str(KeyTitle),
		Entity:    str(KeyEntity),
		Content:   c.Content,
	}
}

// FormatPassages groups passages by source for a model to read.
func FormatPassages(passages []Passage) string {
	if len(passages) == 0 {
		return "No matching sources found."
	}
	var (
		b     strings.Builder
		order []string
	)
	grouped := make(map[string][]Passage)
	for _, p := range passages {
		if _, ok := grouped[p.SourceURL]; !ok {
			order = append(order, p.SourceURL)
		}
		grouped[p.SourceURL] = append(grouped[p.SourceURL], p)
	}
	for i, url := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		group := grouped[url]
		fmt.Fprintf(&b, "# Source: %s\n", url)
		if group[0].Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", group[0].Title)
		}
		if group[0].Entity != "" {
			fmt.Fprintf(&b, "Entity: %s\n", group[0].Entity)
		}
		b.WriteString("\n")
		for _, p := range group {
			fmt.Fprintf(&b, " - %s\n", strings.TrimSpace(p.Content))
		}
	}
	return b.String()
}

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one embedded piece of an archived source page.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Match is a chunk returned by a similarity search.
type Match struct {
	Chunk Chunk
	Score float64
}

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store keeps source chunks in a pgvector table.
type Store struct {
	db        DB
	tableName string
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// validTableName reports whether name is safe to use as a table name: a
// lower case letter or underscore followed by up to 62 letters, digits or
// underscores.
func validTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

func NewStore(db DB, tableName string) (*Store, error) {
	if !validTableName(tableName) {
		return nil, fmt.Errorf("invalid table name %q: must start with a lower case letter or underscore and contain at most 63 letters, digits or underscores", tableName)
	}
	return &Store{db: db, tableName: tableName}, nil
}

func (s *Store) table() string {
	return pgx.Identifier{s.tableName}.Sanitize()
}

// AddChunks inserts chunks in a single batch.
func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, s.table())

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(query, c.Content, metadataJSON, pgvector.NewVector(c.Embedding))
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// SimilaritySearch returns the topK chunks closest to embedding among the
// chunks matching filter.
func (s *Store) SimilaritySearch(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]Match, error) {
	args := []any{pgvector.NewVector(embedding)}
	where, err := buildFilter(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, s.table(), where, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m            Match
			metadataJSON []byte
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Content, &metadataJSON, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &m.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return matches, nil
}

// Find returns the chunks matching filter in insertion order.
func (s *Store) Find(ctx context.Context, filter map[string]any) ([]Chunk, error) {
	var args []any
	where, err := buildFilter(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE %s
		ORDER BY created_at, id
	`, s.table(), where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c            Chunk
			metadataJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return chunks, nil
}

// Delete removes the chunks matching filter. An empty filter is rejected.
func (s *Store) Delete(ctx context.Context, filter map[string]any) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("refusing to delete without a filter")
	}
	var args []any
	where, err := buildFilter(filter, &args)
	if err != nil {
		return 0, fmt.Errorf("failed to build filter: %w", err)
	}

	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, s.table(), where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildFilter turns a metadata filter into a SQL condition. Plain keys
// match by JSONB containment; $and and $or take a list of filters and $not
// takes a filter. Placeholders continue after the args already present.
func buildFilter(filter map[string]any, args *[]any) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conditions []string
	for _, key := range keys {
		value := filter[key]
		switch key {
		case "$and", "$or":
			list, ok := value.([]any)
			if !ok {
				return "", fmt.Errorf("value for %s must be a list of conditions", key)
			}
			var sub []string
			for _, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					return "", fmt.Errorf("item in %s list must be a JSON object", key)
				}
				cond, err := buildFilter(m, args)
				if err != nil {
					return "", err
				}
				sub = append(sub, "("+cond+")")
			}
			if len(sub) == 0 {
				continue
			}
			op := " AND "
			if key == "$or" {
				op = " OR "
			}
			conditions = append(conditions, "("+strings.Join(sub, op)+")")

		case "$not":
			m, ok := value.(map[string]any)
			if !ok {
				return "", fmt.Errorf("value for $not must be a JSON object")
			}
			cond, err := buildFilter(m, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, "NOT ("+cond+")")

		default:
			pair, err := json.Marshal(map[string]any{key: value})
			if err != nil {
				return "", fmt.Errorf("failed to marshal metadata pair: %w", err)
			}
			*args = append(*args, pair)
			conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), nil
}

// Package embedding converts large sets of text chunks into encoded vectors
// with one provider call per batch.
package embedding

import (
	"context"
	"fmt"

	"agentcore/vector"

	"github.com/charmbracelet/log"
)

// DefaultBatchSize is the number of chunks sent per provider call.
const DefaultBatchSize = 50

// Item is one chunk of an origin content.
type Item struct {
	ContentID string `json:"contentId"`
	Key       string `json:"key"`
	Chunk     string `json:"chunk"`
}

// Entry is the embedding of one item.
type Entry struct {
	Chunk  string `json:"chunk"`
	Vector string `json:"embedding"`
}

// Result maps content id, then key, to the embedded chunk.
type Result map[string]map[string]Entry

// Len returns the number of embedded items.
func (r Result) Len() int {
	n := 0
	for _, keys := range r {
		n += len(keys)
	}
	return n
}

// Embedder returns one vector per text, in request order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Pipeline batches items through an Embedder.
type Pipeline struct {
	BatchSize int
	// Prefix is prepended to every chunk sent to the model, for models that
	// distinguish indexed passages from queries ("passage: ").
	Prefix    string
	Precision vector.Precision
	Logger    *log.Logger
}

// Run embeds items in order, one EmbedBatch call per batch, and maps each
// returned vector back onto its item by position.
func (p Pipeline) Run(ctx context.Context, embedder Embedder, items []Item) (Result, error) {
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	result := Result{}
	for i, batch := range Chunk(items, size) {
		texts := make([]string, len(batch))
		for j, item := range batch {
			texts[j] = p.Prefix + item.Chunk
		}

		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("batch %d: got %d vectors for %d chunks", i, len(vectors), len(batch))
		}

		for j, item := range batch {
			literal, err := vector.Encode(p.Precision, vectors[j])
			if err != nil {
				return nil, err
			}
			keys, ok := result[item.ContentID]
			if !ok {
				keys = map[string]Entry{}
				result[item.ContentID] = keys
			}
			keys[item.Key] = Entry{Chunk: item.Chunk, Vector: literal}
		}
		logger.Debug("embedded batch", "batch", i, "size", len(batch))
	}
	return result, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

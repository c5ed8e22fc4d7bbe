package agent

import (
	"context"

	"agentcore/embedding"
	"agentcore/vector"
)

// Embed returns the encoded vector of text. Empty text yields an empty
// literal without calling the provider.
func (a *Agent) Embed(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	def := a.Definition()
	p, err := a.provider(def)
	if err != nil {
		return "", err
	}
	v, err := p.Embed(ctx, def.Model, text)
	if err != nil {
		return "", err
	}
	return vector.Encode(def.VectorQuality, v)
}

// EmbedBatch returns the encoded vectors of texts in order. Runs of the same
// agent are serialized.
func (a *Agent) EmbedBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	unlock := a.deps.Locks.Lock(a.id)
	defer unlock()

	def := a.Definition()
	vectors, err := a.embedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vectors))
	for i, v := range vectors {
		if out[i], err = vector.Encode(def.VectorQuality, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EmbedItems embeds chunked contents through the batch pipeline. Runs of
// the same agent are serialized; the lock is released on every path.
func (a *Agent) EmbedItems(ctx context.Context, items []embedding.Item) (embedding.Result, error) {
	if len(items) == 0 {
		return embedding.Result{}, nil
	}
	unlock := a.deps.Locks.Lock(a.id)
	defer unlock()

	pipeline := a.deps.Embedding
	pipeline.Precision = a.Definition().VectorQuality
	if pipeline.Logger == nil {
		pipeline.Logger = a.logger
	}
	return pipeline.Run(ctx, embedding.EmbedderFunc(a.embedBatch), items)
}

func (a *Agent) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	def := a.Definition()
	p, err := a.provider(def)
	if err != nil {
		return nil, err
	}
	return p.EmbedBatch(ctx, def.Model, texts)
}

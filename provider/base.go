package provider

import (
	"context"

	"agentcore/model"
)

// Base implements model.Provider by rejecting every call. Backends that only
// support part of the contract embed it and override what they implement.
type Base struct{}

func (Base) Chat(context.Context, model.ChatRequest, model.StreamCallback) (*model.ChatResponse, error) {
	return nil, model.Errorf(model.KindAbstractBackendMisuse, "provider.chat", "chat is not implemented by this backend")
}

func (Base) Generate(context.Context, model.GenerateRequest) (*model.GenerateResponse, error) {
	return nil, model.Errorf(model.KindAbstractBackendMisuse, "provider.generate", "generate is not implemented by this backend")
}

func (Base) Embed(context.Context, string, string) ([]float32, error) {
	return nil, model.Errorf(model.KindAbstractBackendMisuse, "provider.embed", "embed is not implemented by this backend")
}

func (Base) EmbedBatch(context.Context, string, []string) ([][]float32, error) {
	return nil, model.Errorf(model.KindAbstractBackendMisuse, "provider.embed_batch", "embed batch is not implemented by this backend")
}

package mock

import (
	"context"

	"github.com/moegate/moegate/internal/llm"
)

// Provider is a test double implementing llm.Provider and llm.Embedder.
type Provider struct {
	NameValue    string
	ChatFn       func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	EmbedFn      func(ctx context.Context, model string, inputs []string) ([][]float64, error)
	StreamChunks []llm.StreamChunk
	StreamErr    error
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "mock",
		},
		Model: req.Model,
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, <-chan error) {
	ch := make(chan llm.StreamChunk, len(p.StreamChunks))
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		defer close(errCh)
		for _, c := range p.StreamChunks {
			ch <- c
		}
		if p.StreamErr != nil {
			errCh <- p.StreamErr
		}
	}()
	return ch, errCh
}

func (p *Provider) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	if p.EmbedFn != nil {
		return p.EmbedFn(ctx, model, inputs)
	}
	out := make([][]float64, len(inputs))
	for i := range inputs {
		out[i] = []float64{0}
	}
	return out, nil
}

package dispatch

import (
	"context"

	"github.com/moegate/moegate/internal/llm"
	"github.com/moegate/moegate/internal/routing"
)

// Request is a single dispatch invocation. Model "" or "auto" routes via the
// classifier; any other value pins an explicit expert.
type Request struct {
	Messages     []llm.ChatMessage
	Model        string
	UseRetrieval bool
	Fanout       int // quorum size; 0 selects the configured default
	Temperature  float64
	MaxTokens    int
}

// Result wraps the reply and routing metadata.
type Result struct {
	Content      string
	Expert       string
	Role         routing.Role
	UseRetrieval bool
	FinishReason string
	Usage        llm.Usage

	// Quorum-only fields.
	Experts   []string
	Responded []string
	Score     float64
}

// Augmenter enriches a query with retrieved context before dispatch. The
// vector-store implementation lives outside this module; NoopAugmenter is
// wired when retrieval is unavailable.
type Augmenter interface {
	Augment(ctx context.Context, query string) (string, error)
}

// NoopAugmenter returns queries unchanged.
type NoopAugmenter struct{}

// Augment implements Augmenter.
func (NoopAugmenter) Augment(_ context.Context, query string) (string, error) {
	return query, nil
}

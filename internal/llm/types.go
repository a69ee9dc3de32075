package llm

import "context"

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part types for multimodal message content.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ChatMessage represents a single message exchanged with the model.
// Content carries plain text; Parts is set instead when the message is
// multimodal (text and image references in original order).
type ChatMessage struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
	Name    string        `json:"name,omitempty"`
}

// Multimodal reports whether the message uses typed content parts.
func (m ChatMessage) Multimodal() bool {
	return len(m.Parts) > 0
}

// Text returns the textual portion of the message. For multimodal messages
// the text parts are concatenated in original order.
func (m ChatMessage) Text() string {
	if !m.Multimodal() {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p.Text
	}
	return out
}

// HasImage reports whether any content part is an image reference.
func (m ChatMessage) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImageURL {
			return true
		}
	}
	return false
}

// ChatRequest is the input for chat providers.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a chat completion.
type ChatResponse struct {
	Message      ChatMessage
	FinishReason string
	Usage        Usage
	RawResponse  interface{}
	ProviderName string
	Model        string
}

// StreamChunk is emitted during streaming responses.
type StreamChunk struct {
	Content      string
	FinishReason string
	Err          error
}

// Provider defines the contract for LLM providers.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error)
}

// Embedder is implemented by providers that can produce embeddings.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}

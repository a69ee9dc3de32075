// Package httpapi exposes the dispatcher over an OpenAI-compatible REST
// surface: chat completions (with SSE streaming), embeddings, model listing
// and an expert introspection endpoint.
package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/moegate/moegate/internal/llm"
)

// messageContent accepts either a plain string or an array of typed content
// parts, matching the OpenAI chat message schema.
type messageContent struct {
	Text  string
	Parts []llm.ContentPart
}

func (c *messageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	var raw []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content must be a string or an array of parts: %w", err)
	}

	c.Parts = make([]llm.ContentPart, 0, len(raw))
	for _, p := range raw {
		part := llm.ContentPart{Type: p.Type, Text: p.Text, ImageURL: p.ImageURL.URL}
		c.Parts = append(c.Parts, part)
	}
	return nil
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content messageContent `json:"content"`
	Name    string         `json:"name,omitempty"`
}

func (m wireMessage) toChatMessage() llm.ChatMessage {
	out := llm.ChatMessage{Role: llm.Role(m.Role), Name: m.Name}
	if len(m.Content.Parts) > 0 {
		out.Parts = m.Content.Parts
	} else {
		out.Content = m.Content.Text
	}
	return out
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`

	// Routing extensions beyond the OpenAI schema.
	UseRAG bool `json:"use_rag"`
	Quorum bool `json:"quorum"`
	Fanout int  `json:"fanout"`
}

func (r chatCompletionRequest) toChatMessages() []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m.toChatMessage())
	}
	return out
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`

	// Routing extensions.
	Experts   []string `json:"experts,omitempty"`
	Responded []string `json:"responded,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

// embeddingInput accepts a single string or an array of strings.
type embeddingInput []string

func (e *embeddingInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = []string{s}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("input must be a string or an array of strings: %w", err)
	}
	*e = many
	return nil
}

type embeddingsRequest struct {
	Model string         `json:"model"`
	Input embeddingInput `json:"input"`
}

type embeddingObject struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingsResponse struct {
	Object string            `json:"object"`
	Model  string            `json:"model"`
	Data   []embeddingObject `json:"data"`
	Usage  wireUsage         `json:"usage"`
}

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

type expertStatus struct {
	Role         string   `json:"role"`
	Model        string   `json:"model"`
	Backups      []string `json:"backups"`
	FailureCount int      `json:"failure_count"`
	Quarantined  bool     `json:"quarantined"`
}

type expertsResponse struct {
	Experts []expertStatus `json:"experts"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// estimateTokens approximates token counts at four characters per token,
// matching common OpenAI-compatible gateways.
func estimateTokens(text string) int {
	return len(text) / 4
}

package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moegate/moegate/internal/llm"
)

func TestChat(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/chat", r.URL.Path)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"message":{"role":"assistant","content":"pong"}}`)),
			}, nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "gpt-oss:20b-cloud",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "ping"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Message.Content)
}

func TestChatSendsBearerToken(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "https://ollama.com", "secret", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"message":{"role":"assistant","content":"ok"}}`)),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "gpt-oss:20b-cloud",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestChatFlattensMultimodal(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var body ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Messages, 1)
			require.Equal(t, "What is in this image?", body.Messages[0].Content)
			require.Equal(t, []string{"https://example.com/a.png"}, body.Messages[0].Images)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"message":{"role":"assistant","content":"a cat"}}`)),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "qwen3-vl:235b-cloud",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Parts: []llm.ContentPart{
			{Type: llm.PartText, Text: "What is in this image?"},
			{Type: llm.PartImageURL, ImageURL: "https://example.com/a.png"},
		}}},
	})
	require.NoError(t, err)
}

func TestStream(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"message":{"role":"assistant","content":"chunk"}}`)),
			}, nil
		}),
	}

	ch, errCh := p.Stream(context.Background(), llm.ChatRequest{
		Model: "gpt-oss:20b-cloud",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "hi"}},
	})

	chunk := <-ch
	require.Equal(t, "chunk", chunk.Content)
	require.Empty(t, <-errCh)
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/embeddings", r.URL.Path)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"embedding":[0.1,0.2,0.3]}`)),
			}, nil
		}),
	}

	vecs, err := p.Embed(context.Background(), "nomic-embed-text", []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, vecs[0])
}

func TestChatErrorStatus(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadGateway,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`upstream down`)),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "gpt-oss:20b-cloud",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

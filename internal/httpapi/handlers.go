package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moegate/moegate/internal/dispatch"
	"github.com/moegate/moegate/internal/llm"
	"github.com/moegate/moegate/internal/observability"
	"github.com/moegate/moegate/internal/routing"
)

// Handlers bundles the REST endpoints over one dispatcher.
type Handlers struct {
	Dispatcher     *dispatch.Dispatcher
	Providers      *llm.Registry
	EmbeddingModel string
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// ChatCompletions serves POST /v1/chat/completions. Model "auto" (or empty)
// routes via the classifier; a concrete model pins that expert. The quorum
// flag fans the request out and merges the responses.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.RecordTransportError("chat_completions", "decode")
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("decode request: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	dreq := dispatch.Request{
		Messages:     req.toChatMessages(),
		Model:        req.Model,
		UseRetrieval: req.UseRAG,
		Fanout:       req.Fanout,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}

	var (
		res dispatch.Result
		err error
	)
	if req.Quorum {
		res, err = h.Dispatcher.DispatchQuorum(r.Context(), dreq)
	} else {
		res, err = h.Dispatcher.Dispatch(r.Context(), dreq)
	}
	if err != nil {
		h.Logger.Error("dispatch failed", zap.Error(err))
		h.Metrics.RecordTransportError("chat_completions", "dispatch")
		h.writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	if req.Stream {
		h.streamCompletion(w, res)
		return
	}

	h.writeJSON(w, http.StatusOK, h.completionResponse(req, res))
}

// streamCompletion replays a finished dispatch as an SSE stream: a role
// delta, the full content delta, a finish chunk, then [DONE].
func (h *Handlers) streamCompletion(w http.ResponseWriter, res dispatch.Result) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
		return
	}

	h.Metrics.IncActiveStreams()
	defer h.Metrics.DecActiveStreams()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	base := chatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   res.Expert,
	}

	emit := func(c chatCompletionChunk) {
		data, err := json.Marshal(c)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	first := base
	first.Choices = []chunkChoice{{Delta: chunkDelta{Role: "assistant"}}}
	emit(first)

	content := base
	content.Choices = []chunkChoice{{Delta: chunkDelta{Content: res.Content}}}
	emit(content)

	finish := res.FinishReason
	if finish == "" {
		finish = "stop"
	}
	last := base
	last.Choices = []chunkChoice{{FinishReason: &finish}}
	emit(last)

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (h *Handlers) completionResponse(req chatCompletionRequest, res dispatch.Result) chatCompletionResponse {
	usage := wireUsage{
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		var prompt int
		for _, m := range req.Messages {
			prompt += estimateTokens(m.Content.Text)
			for _, p := range m.Content.Parts {
				prompt += estimateTokens(p.Text)
			}
		}
		usage = wireUsage{
			PromptTokens:     prompt,
			CompletionTokens: estimateTokens(res.Content),
			TotalTokens:      prompt + estimateTokens(res.Content),
		}
	}

	finish := res.FinishReason
	if finish == "" {
		finish = "stop"
	}

	out := chatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   res.Expert,
		Choices: []chatChoice{{
			Message:      responseMessage{Role: "assistant", Content: res.Content},
			FinishReason: finish,
		}},
		Usage: usage,
	}
	if len(res.Experts) > 0 {
		out.Experts = res.Experts
		out.Responded = res.Responded
		score := res.Score
		out.Score = &score
	}
	return out
}

// Embeddings serves POST /v1/embeddings by proxying to the default provider's
// embedding endpoint.
func (h *Handlers) Embeddings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.RecordTransportError("embeddings", "decode")
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("decode request: %v", err))
		return
	}
	if len(req.Input) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", "input must not be empty")
		return
	}

	provider, _, err := h.Providers.Resolve("")
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	embedder, ok := provider.(llm.Embedder)
	if !ok {
		h.writeError(w, http.StatusNotImplemented, "server_error", "default provider does not support embeddings")
		return
	}

	model := req.Model
	if model == "" {
		model = h.EmbeddingModel
	}

	vectors, err := embedder.Embed(r.Context(), model, req.Input)
	if err != nil {
		h.Logger.Error("embedding failed", zap.String("model", model), zap.Error(err))
		h.Metrics.RecordTransportError("embeddings", "upstream")
		h.writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	data := make([]embeddingObject, 0, len(vectors))
	var prompt int
	for i, v := range vectors {
		data = append(data, embeddingObject{Object: "embedding", Index: i, Embedding: v})
	}
	for _, in := range req.Input {
		prompt += estimateTokens(in)
	}

	h.writeJSON(w, http.StatusOK, embeddingsResponse{
		Object: "list",
		Model:  model,
		Data:   data,
		Usage:  wireUsage{PromptTokens: prompt, TotalTokens: prompt},
	})
}

// Models serves GET /v1/models: the expert catalog plus the "auto" alias.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	created := time.Now().Unix()
	data := []modelObject{{ID: "auto", Object: "model", Created: created, OwnedBy: "moegate"}}
	for _, expert := range h.Dispatcher.Experts().AllExperts() {
		data = append(data, modelObject{ID: expert, Object: "model", Created: created, OwnedBy: "moegate"})
	}

	h.writeJSON(w, http.StatusOK, modelsResponse{Object: "list", Data: data})
}

// Experts serves GET /v1/experts: role bindings, backup chains and live
// health state, in catalog order.
func (h *Handlers) Experts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	registry := h.Dispatcher.Experts()
	snapshot := h.Dispatcher.Health().Snapshot()

	experts := make([]expertStatus, 0, len(routing.Roles()))
	for _, role := range routing.Roles() {
		model := registry.ExpertFor(role)
		st := snapshot[model]
		backups := registry.BackupsOf(model)
		if backups == nil {
			backups = []string{}
		}
		experts = append(experts, expertStatus{
			Role:         string(role),
			Model:        model,
			Backups:      backups,
			FailureCount: st.FailureCount,
			Quarantined:  st.Quarantined,
		})
	}

	h.writeJSON(w, http.StatusOK, expertsResponse{Experts: experts})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Warn("write response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, errorResponse{Error: apiError{Message: message, Type: errType}})
}

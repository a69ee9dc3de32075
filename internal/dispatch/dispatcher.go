// Package dispatch drives the routing core against live providers: it
// classifies, substitutes healthy experts, performs the outbound calls, fans
// out for quorum requests, and feeds call outcomes back into the health
// tracker.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moegate/moegate/internal/config"
	"github.com/moegate/moegate/internal/llm"
	"github.com/moegate/moegate/internal/observability"
	"github.com/moegate/moegate/internal/routing"
)

// Dispatcher owns the per-process routing state and performs expert calls.
type Dispatcher struct {
	providers  *llm.Registry
	experts    *routing.Registry
	classifier *routing.Classifier
	health     *routing.HealthTracker
	selector   *routing.Selector
	aggregator *routing.Aggregator
	augmenter  Augmenter
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.RouterConfig
}

// New wires a dispatcher from its collaborators. augmenter may be nil when
// retrieval augmentation is disabled.
func New(
	providers *llm.Registry,
	experts *routing.Registry,
	health *routing.HealthTracker,
	augmenter Augmenter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg config.RouterConfig,
) *Dispatcher {
	classifier := routing.NewClassifier(experts)
	if augmenter == nil {
		augmenter = NoopAugmenter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		providers:  providers,
		experts:    experts,
		classifier: classifier,
		health:     health,
		selector:   routing.NewSelector(experts, classifier, health),
		aggregator: routing.NewAggregator(experts, cfg.HedgingPhrases),
		augmenter:  augmenter,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Route exposes the single-expert routing decision without performing a call.
func (d *Dispatcher) Route(messages []llm.ChatMessage, useRetrieval bool) routing.Decision {
	return d.classifier.Classify(messages, useRetrieval)
}

// Resolve exposes health-aware substitution for a chosen expert.
func (d *Dispatcher) Resolve(expert string) string {
	return d.health.Resolve(expert)
}

// Health returns the shared tracker so callers can record outcomes of calls
// they perform themselves.
func (d *Dispatcher) Health() *routing.HealthTracker {
	return d.health
}

// Experts returns the static expert catalog.
func (d *Dispatcher) Experts() *routing.Registry {
	return d.experts
}

// Dispatch routes a request to one expert and performs the call, walking the
// backup chain on failure. Images are stripped when a multimodal request
// falls back to a text-only expert.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { d.metrics.RecordDispatch("single", time.Since(start)) }()

	decision, explicit := d.decide(req)
	d.metrics.RecordDecision(string(decision.Role), decision.UseRetrieval)

	messages, err := d.maybeAugment(ctx, req.Messages, decision.UseRetrieval)
	if err != nil {
		return Result{}, err
	}

	var lastErr error
	for _, expert := range d.candidates(decision.Expert, explicit) {
		callMessages := messages
		if hasImages(messages) && !visionCapable(d.experts, expert) {
			callMessages = routing.StripImages(messages)
		}

		resp, err := d.call(ctx, expert, callMessages, req)
		d.metrics.RecordExpertCall(expert, err)
		if err != nil {
			lastErr = err
			if tripped := d.health.RecordFailure(expert); tripped {
				d.metrics.SetQuarantined(expert, true)
				d.logger.Warn("expert quarantined",
					zap.String("expert", expert),
					zap.Error(err))
			} else {
				d.logger.Warn("expert call failed",
					zap.String("expert", expert),
					zap.Error(err))
			}
			continue
		}

		d.health.RecordSuccess(expert)
		d.metrics.SetQuarantined(expert, false)
		return Result{
			Content:      resp.Message.Content,
			Expert:       expert,
			Role:         decision.Role,
			UseRetrieval: decision.UseRetrieval,
			FinishReason: resp.FinishReason,
			Usage:        resp.Usage,
		}, nil
	}

	return Result{}, fmt.Errorf("all experts failed for %q: %w", decision.Expert, lastErr)
}

// DispatchQuorum fans the request out to up to k experts concurrently,
// records per-member outcomes, and merges whatever subset responded before
// the quorum deadline.
func (d *Dispatcher) DispatchQuorum(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { d.metrics.RecordDispatch("quorum", time.Since(start)) }()

	k := req.Fanout
	if k <= 0 {
		k = d.cfg.Fanout
	}

	decision, _ := d.decide(req)
	d.metrics.RecordDecision(string(decision.Role), decision.UseRetrieval)

	messages, err := d.maybeAugment(ctx, req.Messages, decision.UseRetrieval)
	if err != nil {
		return Result{}, err
	}

	experts := d.selector.SelectExperts(messages, k)

	deadline := time.Duration(d.cfg.QuorumTimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var mu sync.Mutex
	responses := make(map[string]string, len(experts))

	g, gctx := errgroup.WithContext(callCtx)
	for _, expert := range experts {
		expert := expert
		g.Go(func() error {
			callMessages := messages
			if hasImages(messages) && !visionCapable(d.experts, expert) {
				callMessages = routing.StripImages(messages)
			}

			resp, err := d.call(gctx, expert, callMessages, req)
			d.metrics.RecordExpertCall(expert, err)
			if err != nil {
				// Non-responders are omitted from the merge, not fatal.
				if tripped := d.health.RecordFailure(expert); tripped {
					d.metrics.SetQuarantined(expert, true)
				}
				d.logger.Warn("quorum member failed",
					zap.String("expert", expert),
					zap.Error(err))
				return nil
			}

			d.health.RecordSuccess(expert)
			d.metrics.SetQuarantined(expert, false)
			mu.Lock()
			responses[expert] = resp.Message.Content
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(responses) == 0 {
		return Result{}, fmt.Errorf("no quorum member responded out of %d", len(experts))
	}

	responded := make([]string, 0, len(responses))
	texts := make([]string, 0, len(responses))
	for _, expert := range experts {
		if text, ok := responses[expert]; ok {
			responded = append(responded, expert)
			texts = append(texts, text)
		}
	}

	score := d.aggregator.Score(texts)
	d.metrics.RecordQuorum(len(experts), score)
	d.logger.Info("quorum dispatch complete",
		zap.Int("selected", len(experts)),
		zap.Int("responded", len(responded)),
		zap.Float64("score", score))

	return Result{
		Content:      d.aggregator.Merge(responses),
		Expert:       responded[0],
		Role:         decision.Role,
		UseRetrieval: decision.UseRetrieval,
		FinishReason: "stop",
		Experts:      experts,
		Responded:    responded,
		Score:        score,
	}, nil
}

// decide classifies the request unless the caller pinned an explicit model.
func (d *Dispatcher) decide(req Request) (routing.Decision, bool) {
	model := strings.TrimSpace(req.Model)
	if model != "" && !strings.EqualFold(model, "auto") {
		decision := routing.Decision{Expert: model, UseRetrieval: req.UseRetrieval}
		if role, ok := d.experts.RoleOf(model); ok {
			decision.Role = role
		}
		return decision, true
	}
	return d.classifier.Classify(req.Messages, req.UseRetrieval), false
}

// candidates returns the attempt order for a primary expert: the
// health-resolved primary, then remaining backups of the primary, then the
// designated fallback. Explicit model pins skip substitution entirely.
func (d *Dispatcher) candidates(primary string, explicit bool) []string {
	if explicit {
		return []string{primary}
	}

	resolved := d.health.Resolve(primary)
	order := []string{resolved}
	seen := map[string]bool{resolved: true}
	for _, backup := range d.experts.BackupsOf(primary) {
		if !seen[backup] {
			order = append(order, backup)
			seen[backup] = true
		}
	}
	if fb := d.experts.Fallback(); !seen[fb] {
		order = append(order, fb)
	}
	return order
}

func (d *Dispatcher) maybeAugment(ctx context.Context, messages []llm.ChatMessage, useRetrieval bool) ([]llm.ChatMessage, error) {
	if !useRetrieval {
		return messages, nil
	}

	idx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		return messages, nil
	}

	augmented, err := d.augmenter.Augment(ctx, messages[idx].Text())
	if err != nil {
		return nil, fmt.Errorf("augment prompt: %w", err)
	}

	out := make([]llm.ChatMessage, len(messages))
	copy(out, messages)
	out[idx].Content = augmented
	out[idx].Parts = nil
	return out, nil
}

func (d *Dispatcher) call(ctx context.Context, expert string, messages []llm.ChatMessage, req Request) (llm.ChatResponse, error) {
	provider, route, err := d.providers.Resolve(expert)
	if err != nil {
		return llm.ChatResponse{}, err
	}

	temperature := route.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := route.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	return provider.Chat(ctx, llm.ChatRequest{
		Model:       route.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

func hasImages(messages []llm.ChatMessage) bool {
	for _, m := range messages {
		if m.HasImage() {
			return true
		}
	}
	return false
}

func visionCapable(reg *routing.Registry, expert string) bool {
	role, ok := reg.RoleOf(expert)
	if !ok {
		return false
	}
	return role == routing.RoleVision || role == routing.RoleVisionThinking
}

package routing

import (
	"strings"

	"github.com/moegate/moegate/internal/llm"
)

// Keyword tables driving the classification cascade. Matching is
// case-insensitive substring containment against the latest user turn.
var (
	codeKeywords = []string{
		"code", "class", "programming", "debug", "implement",
		"script", "bug", "error", "compile", "syntax", "refactor", "test",
	}
	simpleCodeKeywords = []string{"simple", "basic", "quick", "small"}
	mathToolKeywords   = []string{
		"math", "calculate", "equation", "solve", "tool", "function call",
		"agent", "autonomous", "workflow", "integrate", "api", "invoke",
	}
	reasoningKeywords = []string{
		"analyze", "reasoning", "why", "complex", "detailed", "explain in depth",
		"comprehensive", "thorough", "trace", "step-by-step", "think",
	}
	enterpriseKeywords  = []string{"enterprise", "production", "critical", "important", "detailed analysis"}
	aggregationKeywords = []string{"summarize", "combine", "aggregate", "synthesize", "merge", "consolidate"}
	retrievalKeywords   = []string{"search", "find", "lookup", "retrieve", "document", "knowledge base"}
)

// Decision is the outcome of classifying one request.
type Decision struct {
	Expert       string
	Role         Role
	UseRetrieval bool
}

// Classifier maps request content to an expert via a fixed priority cascade.
// It is pure: no state, no I/O.
type Classifier struct {
	registry *Registry
}

// NewClassifier builds a classifier over the expert catalog.
func NewClassifier(registry *Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify inspects the most recent user turn and picks an expert plus a
// retrieval-augmentation flag. useRetrieval is the caller's requested flag;
// some branches force or clear it. An empty turn list falls through to the
// default branch.
func (c *Classifier) Classify(messages []llm.ChatMessage, useRetrieval bool) Decision {
	text, hasImage := lastUserContent(messages)
	lower := strings.ToLower(text)

	switch {
	case hasImage && (containsAny(lower, reasoningKeywords) || containsAny(lower, mathToolKeywords)):
		return c.decide(RoleVisionThinking, false)
	case hasImage:
		return c.decide(RoleVision, false)
	case containsAny(lower, codeKeywords):
		if containsAny(lower, simpleCodeKeywords) {
			return c.decide(RoleCostCode, false)
		}
		return c.decide(RoleCode, false)
	case containsAny(lower, mathToolKeywords):
		return c.decide(RoleMathTool, useRetrieval)
	case containsAny(lower, reasoningKeywords):
		return c.decide(RoleReasoning, useRetrieval)
	case containsAny(lower, enterpriseKeywords):
		return c.decide(RoleEnterprise, useRetrieval)
	case containsAny(lower, aggregationKeywords):
		return c.decide(RoleAggregator, useRetrieval)
	case containsAny(lower, retrievalKeywords):
		return c.decide(RoleFallback, true)
	default:
		return c.decide(RoleFallback, useRetrieval)
	}
}

func (c *Classifier) decide(role Role, useRetrieval bool) Decision {
	return Decision{
		Expert:       c.registry.ExpertFor(role),
		Role:         role,
		UseRetrieval: useRetrieval,
	}
}

// lastUserContent extracts the text and image flag from the most recent user
// turn. Text parts of a multimodal turn are concatenated in original order.
func lastUserContent(messages []llm.ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llm.RoleUser {
			continue
		}
		return messages[i].Text(), messages[i].HasImage()
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

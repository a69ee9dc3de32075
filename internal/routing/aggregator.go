package routing

import (
	"sort"
	"strings"
)

// DefaultHedgingPhrases flags low-confidence language during response
// scoring. Deployments may override the list in configuration.
var DefaultHedgingPhrases = []string{
	"not sure", "uncertain", "i don't know", "cannot determine", "unclear",
}

// Aggregator scores and merges multi-expert response sets.
type Aggregator struct {
	registry *Registry
	hedges   []string
}

// NewAggregator builds an aggregator. Empty hedgingPhrases selects
// DefaultHedgingPhrases.
func NewAggregator(registry *Registry, hedgingPhrases []string) *Aggregator {
	if len(hedgingPhrases) == 0 {
		hedgingPhrases = DefaultHedgingPhrases
	}
	hedges := make([]string, len(hedgingPhrases))
	for i, h := range hedgingPhrases {
		hedges[i] = strings.ToLower(h)
	}
	return &Aggregator{registry: registry, hedges: hedges}
}

// Score rates a response set in [0,1]: 1.0 minus independent penalties for
// hedging language, brevity, and cross-response redundancy. An empty set
// scores 0.0.
func (a *Aggregator) Score(responses []string) float64 {
	if len(responses) == 0 {
		return 0.0
	}

	score := 1.0

	hedged := 0
	totalLen := 0
	for _, resp := range responses {
		totalLen += len(resp)
		if containsAny(strings.ToLower(resp), a.hedges) {
			hedged++
		}
	}
	score -= float64(hedged) / float64(len(responses)) * 0.4

	meanLen := float64(totalLen) / float64(len(responses))
	switch {
	case meanLen < 50:
		score -= 0.3
	case meanLen < 150:
		score -= 0.15
	}

	if len(responses) > 1 {
		distinct := map[string]bool{}
		total := 0
		for _, resp := range responses {
			for _, tok := range strings.Fields(resp) {
				distinct[tok] = true
				total++
			}
		}
		if total > 0 && float64(len(distinct))/float64(total) < 0.3 {
			score -= 0.2
		}
	}

	if score < 0 {
		return 0.0
	}
	if score > 1 {
		return 1.0
	}
	return score
}

// Merge joins expert responses into one reply: empty input yields "", a
// single response is returned verbatim, and multiple responses are
// concatenated with blank-line separators in catalog enumeration order.
// Per-expert attribution is deliberately not injected into the merged text.
func (a *Aggregator) Merge(byExpert map[string]string) string {
	if len(byExpert) == 0 {
		return ""
	}
	if len(byExpert) == 1 {
		for _, resp := range byExpert {
			return resp
		}
	}

	ordered := make([]string, 0, len(byExpert))
	remaining := make(map[string]bool, len(byExpert))
	for expert := range byExpert {
		remaining[expert] = true
	}
	for _, expert := range a.registry.AllExperts() {
		if remaining[expert] {
			ordered = append(ordered, byExpert[expert])
			delete(remaining, expert)
		}
	}
	if len(remaining) > 0 {
		// Experts outside the catalog sort lexically for determinism.
		extras := make([]string, 0, len(remaining))
		for expert := range remaining {
			extras = append(extras, expert)
		}
		sort.Strings(extras)
		for _, expert := range extras {
			ordered = append(ordered, byExpert[expert])
		}
	}

	return strings.Join(ordered, "\n\n")
}

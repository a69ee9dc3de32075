package routing

import "github.com/moegate/moegate/internal/llm"

// Selector builds ranked multi-expert sets for quorum fan-out.
type Selector struct {
	registry   *Registry
	classifier *Classifier
	health     *HealthTracker
}

// NewSelector wires a selector over the catalog, classifier and tracker.
func NewSelector(registry *Registry, classifier *Classifier, health *HealthTracker) *Selector {
	return &Selector{registry: registry, classifier: classifier, health: health}
}

// SelectExperts returns up to k distinct experts for the request, ranked:
// the health-resolved primary first, then available backups of the resolved
// primary in chain order, then any remaining available expert in catalog
// enumeration order. The result may be shorter than k when too many experts
// are quarantined; it is never empty for k >= 1.
func (s *Selector) SelectExperts(messages []llm.ChatMessage, k int) []string {
	if k < 1 {
		return nil
	}

	decision := s.classifier.Classify(messages, false)
	primary := s.health.Resolve(decision.Expert)

	selected := []string{primary}
	included := map[string]bool{primary: true}

	for _, backup := range s.registry.BackupsOf(primary) {
		if len(selected) >= k {
			break
		}
		if included[backup] || s.health.IsQuarantined(backup) {
			continue
		}
		selected = append(selected, backup)
		included[backup] = true
	}

	for _, expert := range s.registry.AllExperts() {
		if len(selected) >= k {
			break
		}
		if included[expert] || s.health.IsQuarantined(expert) {
			continue
		}
		selected = append(selected, expert)
		included[expert] = true
	}

	return selected
}

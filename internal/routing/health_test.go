package routing_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moegate/moegate/internal/routing"
)

func TestQuarantineAtThreshold(t *testing.T) {
	h := routing.NewHealthTracker(newTestRegistry(t), 3)
	expert := "qwen3-coder:480b-cloud"

	require.False(t, h.RecordFailure(expert))
	require.False(t, h.RecordFailure(expert))
	require.False(t, h.IsQuarantined(expert))

	require.True(t, h.RecordFailure(expert), "third failure trips the breaker")
	require.True(t, h.IsQuarantined(expert))

	// Further failures keep counting but do not re-trip.
	require.False(t, h.RecordFailure(expert))
	require.True(t, h.IsQuarantined(expert))
}

func TestSuccessResetsQuarantine(t *testing.T) {
	h := routing.NewHealthTracker(newTestRegistry(t), 3)
	expert := "qwen3-coder:480b-cloud"

	for i := 0; i < 3; i++ {
		h.RecordFailure(expert)
	}
	require.True(t, h.IsQuarantined(expert))

	h.RecordSuccess(expert)
	require.False(t, h.IsQuarantined(expert))
	require.Equal(t, routing.HealthState{}, h.Snapshot()[expert], "counter resets to zero")
}

func TestUnknownExpertNotQuarantined(t *testing.T) {
	h := routing.NewHealthTracker(newTestRegistry(t), 3)
	require.False(t, h.IsQuarantined("never-registered"))
}

func TestResolveHealthyPrimary(t *testing.T) {
	h := routing.NewHealthTracker(newTestRegistry(t), 3)
	require.Equal(t, "deepseek-v3.1:671b-cloud", h.Resolve("deepseek-v3.1:671b-cloud"))
}

func TestResolveWalksBackupChain(t *testing.T) {
	h := routing.NewHealthTracker(newTestRegistry(t), 1)

	// reasoning -> [enterprise, fallback]
	h.RecordFailure("deepseek-v3.1:671b-cloud")
	require.Equal(t, "gpt-oss:120b-cloud", h.Resolve("deepseek-v3.1:671b-cloud"))

	h.RecordFailure("gpt-oss:120b-cloud")
	require.Equal(t, "gpt-oss:20b-cloud", h.Resolve("deepseek-v3.1:671b-cloud"))
}

func TestResolveDegradedPoolReturnsFallback(t *testing.T) {
	reg := newTestRegistry(t)
	h := routing.NewHealthTracker(reg, 1)

	for _, expert := range reg.AllExperts() {
		h.RecordFailure(expert)
	}
	got := h.Resolve("deepseek-v3.1:671b-cloud")
	require.Equal(t, "gpt-oss:20b-cloud", got, "fallback even when itself quarantined")
}

func TestHealthTrackerConcurrentAccess(t *testing.T) {
	reg := newTestRegistry(t)
	h := routing.NewHealthTracker(reg, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, expert := range reg.AllExperts() {
					if (n+j)%2 == 0 {
						h.RecordFailure(expert)
					} else {
						h.RecordSuccess(expert)
					}
					h.IsQuarantined(expert)
					h.Resolve(expert)
				}
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, h.Snapshot(), len(reg.AllExperts()))
}

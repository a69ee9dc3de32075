package routing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moegate/moegate/internal/routing"
)

func newTestAggregator(t *testing.T) *routing.Aggregator {
	t.Helper()
	return routing.NewAggregator(newTestRegistry(t), nil)
}

func TestScoreEmptySet(t *testing.T) {
	require.Equal(t, 0.0, newTestAggregator(t).Score(nil))
}

func TestScoreConfidentVerboseResponses(t *testing.T) {
	agg := newTestAggregator(t)

	a := "The mitochondria generates most of the chemical energy needed to power the cell's biochemical reactions through oxidative phosphorylation, storing it in ATP molecules."
	b := "Chloroplasts capture light energy and convert carbon dioxide plus water into glucose during photosynthesis, releasing oxygen as a byproduct inside plant tissue."
	score := agg.Score([]string{a, b})
	require.Greater(t, score, 0.6)
}

func TestScoreHedgingShortResponses(t *testing.T) {
	agg := newTestAggregator(t)

	score := agg.Score([]string{"not sure", "uncertain"})
	require.Less(t, score, 0.5)
}

func TestScoreBrevityBands(t *testing.T) {
	agg := newTestAggregator(t)

	short := agg.Score([]string{"tiny answer"})
	medium := agg.Score([]string{strings.Repeat("word ", 20)}) // ~100 chars
	long := agg.Score([]string{strings.Repeat("word ", 40)})   // ~200 chars
	require.Less(t, short, medium)
	require.Less(t, medium, long)
}

func TestScoreRedundancyPenalty(t *testing.T) {
	agg := newTestAggregator(t)

	filler := strings.Repeat("the same words again and again over and over without end ", 4)
	duplicated := agg.Score([]string{filler, filler, filler})
	distinct := agg.Score([]string{
		filler,
		"Completely different material covering novel topics: astronomy, geology, chemistry, linguistics, economics, topology, rhetoric, botany, cartography and archaeology detail.",
	})
	require.Less(t, duplicated, distinct)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	agg := newTestAggregator(t)

	score := agg.Score([]string{"not sure", "uncertain", "unclear"})
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
}

func TestMergeEmpty(t *testing.T) {
	require.Equal(t, "", newTestAggregator(t).Merge(nil))
}

func TestMergeSingleVerbatim(t *testing.T) {
	agg := newTestAggregator(t)
	got := agg.Merge(map[string]string{"gpt-oss:20b-cloud": "X"})
	require.Equal(t, "X", got, "no attribution header added")
}

func TestMergeCatalogOrderNoAttribution(t *testing.T) {
	agg := newTestAggregator(t)

	got := agg.Merge(map[string]string{
		"gpt-oss:20b-cloud":        "second by catalog order",
		"deepseek-v3.1:671b-cloud": "first by catalog order",
	})
	require.Equal(t, "first by catalog order\n\nsecond by catalog order", got)
	require.NotContains(t, got, "deepseek", "expert names never leak into merged text")
}

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEmpty(t *testing.T) {
	positions := Compute(nil, nil, DefaultConfig())
	assert.Empty(t, positions)
}

func TestChainRanksLeftToRight(t *testing.T) {
	positions := Compute(
		[]string{"a", "b", "c"},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}},
		DefaultConfig(),
	)
	require.Len(t, positions, 3)

	assert.Less(t, positions["a"].X, positions["b"].X)
	assert.Less(t, positions["b"].X, positions["c"].X)

	// One rank per node, so each step is node width plus rank gap.
	assert.Equal(t, 260.0, positions["b"].X-positions["a"].X)
}

func TestFanOutSharesRank(t *testing.T) {
	positions := Compute(
		[]string{"root", "left", "right"},
		[]Edge{{From: "root", To: "left"}, {From: "root", To: "right"}},
		DefaultConfig(),
	)
	require.Len(t, positions, 3)

	assert.Equal(t, positions["left"].X, positions["right"].X)
	assert.NotEqual(t, positions["left"].Y, positions["right"].Y)
	// Rank neighbors sit one box-plus-gap apart.
	diff := positions["right"].Y - positions["left"].Y
	if diff < 0 {
		diff = -diff
	}
	assert.Equal(t, 130.0, diff)
}

func TestCycleTerminates(t *testing.T) {
	positions := Compute(
		[]string{"a", "b", "c"},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}},
		DefaultConfig(),
	)
	require.Len(t, positions, 3)
	// The back edge is dropped, so the remaining chain still flows right.
	assert.Less(t, positions["a"].X, positions["b"].X)
	assert.Less(t, positions["b"].X, positions["c"].X)
}

func TestDeterministic(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	edges := []Edge{
		{From: "a", To: "c"},
		{From: "b", To: "c"},
		{From: "c", To: "d"},
		{From: "c", To: "e"},
	}
	first := Compute(ids, edges, DefaultConfig())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(ids, edges, DefaultConfig()))
	}
}

func TestIgnoresUnknownAndSelfEdges(t *testing.T) {
	positions := Compute(
		[]string{"a", "b"},
		[]Edge{{From: "a", To: "b"}, {From: "a", To: "ghost"}, {From: "b", To: "b"}},
		DefaultConfig(),
	)
	require.Len(t, positions, 2)
	assert.Less(t, positions["a"].X, positions["b"].X)
}

func TestDisconnectedNodesGetPositions(t *testing.T) {
	positions := Compute([]string{"a", "b", "c"}, nil, DefaultConfig())
	require.Len(t, positions, 3)
	// No edges means a single rank, stacked vertically in input order.
	assert.Equal(t, positions["a"].X, positions["b"].X)
	assert.Less(t, positions["a"].Y, positions["b"].Y)
	assert.Less(t, positions["b"].Y, positions["c"].Y)
}

func TestCustomConfigSpacing(t *testing.T) {
	cfg := Config{NodeWidth: 100, NodeHeight: 50, NodeSep: 10, RankSep: 20}
	positions := Compute(
		[]string{"a", "b"},
		[]Edge{{From: "a", To: "b"}},
		cfg,
	)
	assert.Equal(t, 120.0, positions["b"].X-positions["a"].X)
}

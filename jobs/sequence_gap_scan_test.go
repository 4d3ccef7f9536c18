package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMissingCounters(t *testing.T) {
	require.Empty(t, missingCounters(nil))
	require.Empty(t, missingCounters([]int{1, 2, 3}))
	require.Equal(t, []int{2}, missingCounters([]int{1, 3}))
	require.Equal(t, []int{1, 2}, missingCounters([]int{3}))
	require.Equal(t, []int{2, 4, 5}, missingCounters([]int{6, 1, 3}))
	// Duplicates (same counter issued twice) do not invent gaps.
	require.Empty(t, missingCounters([]int{1, 1, 2}))
}

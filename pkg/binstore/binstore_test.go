package binstore

import (
	"testing"

	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/stretchr/testify/require"
)

func mustBin(t *testing.T, id int32) *bin.Bin {
	t.Helper()
	b, err := bin.New(id, 25)
	require.NoError(t, err)
	return b
}

func TestGetOrCreateThenGet(t *testing.T) {
	s := New()
	b, err := s.GetOrCreate(5, 25)
	require.NoError(t, err)
	require.Equal(t, int32(5), b.ID)

	got, ok := s.Get(5)
	require.True(t, ok)
	require.Same(t, b, got)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := New()
	_, ok := s.Get(5)
	require.False(t, ok)
}

func TestRemoveDropsEmptyGroup(t *testing.T) {
	s := New()
	s.Set(mustBin(t, 5))
	require.Equal(t, 1, s.Len())

	s.Remove(5)
	require.Equal(t, 0, s.Len())
	_, ok := s.Get(5)
	require.False(t, ok)
}

func TestLenAcrossMultipleGroups(t *testing.T) {
	s := New()
	ids := []int32{-40, -1, 0, 1, 16, 17, 32, 1000}
	for _, id := range ids {
		s.Set(mustBin(t, id))
	}
	require.Equal(t, len(ids), s.Len())
}

func TestNextOccupiedWithinSameGroup(t *testing.T) {
	s := New()
	s.Set(mustBin(t, 0))
	s.Set(mustBin(t, 3))

	next, ok := s.NextOccupied(0, true)
	require.True(t, ok)
	require.Equal(t, int32(3), next.ID)
}

func TestNextOccupiedCrossesGroupBoundaryAscending(t *testing.T) {
	s := New()
	s.Set(mustBin(t, 0))
	s.Set(mustBin(t, 20)) // different group (group size 16)

	next, ok := s.NextOccupied(0, true)
	require.True(t, ok)
	require.Equal(t, int32(20), next.ID)
}

func TestNextOccupiedDescending(t *testing.T) {
	s := New()
	s.Set(mustBin(t, -5))
	s.Set(mustBin(t, 10))

	next, ok := s.NextOccupied(10, false)
	require.True(t, ok)
	require.Equal(t, int32(-5), next.ID)
}

func TestNextOccupiedNoneRemaining(t *testing.T) {
	s := New()
	s.Set(mustBin(t, 0))

	_, ok := s.NextOccupied(0, true)
	require.False(t, ok)
}

func TestSetReplacesExistingBinWithoutChangingLen(t *testing.T) {
	s := New()
	s.Set(mustBin(t, 0))
	require.Equal(t, 1, s.Len())

	replacement := mustBin(t, 0)
	s.Set(replacement)
	require.Equal(t, 1, s.Len())

	got, ok := s.Get(0)
	require.True(t, ok)
	require.Same(t, replacement, got)
}

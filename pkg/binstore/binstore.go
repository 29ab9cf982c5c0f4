// Package binstore is the ordered bin-id -> Bin container.
// Bins are kept in fixed-size groups of 16 (group_idx = score/16, offset =
// score%16, score = id+443636 so scores stay non-negative and ordering
// matches id ordering), each group carrying a used_mask so empty groups can
// be dropped. Any ordered key-value structure with O(log n) lower/higher-
// bound seek would do; non-empty groups are indexed by a sorted slice of
// group indices searched with sort.Search — simpler than a skip list and
// just as correct here.
package binstore

import (
	"sort"

	"github.com/lbpair/dlmm-engine/pkg/bin"
	"github.com/lbpair/dlmm-engine/pkg/pricemath"
)

// GroupSize is the fixed number of bins per group, bounding per-swap
// allocation footprint well below one Bin pointer per bin id.
const GroupSize = 16

type group struct {
	idx      int64
	usedMask uint16
	bins     [GroupSize]*bin.Bin
}

func (g *group) empty() bool { return g.usedMask == 0 }

// BinStore is an ordered map from bin id to *bin.Bin.
type BinStore struct {
	groups map[int64]*group
	order  []int64 // sorted ascending non-empty group indices
}

// New constructs an empty BinStore.
func New() *BinStore {
	return &BinStore{groups: make(map[int64]*group)}
}

func groupOffset(id int32) (groupIdx int64, offset uint) {
	score := pricemath.Score(id)
	groupIdx = score / GroupSize
	offset = uint(score % GroupSize)
	return
}

// seekIndex returns the position in s.order at which groupIdx is, or would
// be inserted, via binary search — O(log n) on the number of non-empty
// groups.
func (s *BinStore) seekIndex(groupIdx int64) int {
	return sort.Search(len(s.order), func(i int) bool { return s.order[i] >= groupIdx })
}

// Get returns the bin at id, if present.
func (s *BinStore) Get(id int32) (*bin.Bin, bool) {
	gi, off := groupOffset(id)
	g, ok := s.groups[gi]
	if !ok {
		return nil, false
	}
	b := g.bins[off]
	if b == nil {
		return nil, false
	}
	return b, true
}

// Set inserts or replaces the bin at id. The bin's ID must equal id.
func (s *BinStore) Set(b *bin.Bin) {
	gi, off := groupOffset(b.ID)
	g, ok := s.groups[gi]
	if !ok {
		g = &group{idx: gi}
		s.groups[gi] = g
		i := s.seekIndex(gi)
		s.order = append(s.order, 0)
		copy(s.order[i+1:], s.order[i:])
		s.order[i] = gi
	}
	if g.bins[off] == nil {
		g.usedMask |= 1 << off
	}
	g.bins[off] = b
}

// Remove clears the bin at id, dropping the group once its mask hits zero.
func (s *BinStore) Remove(id int32) {
	gi, off := groupOffset(id)
	g, ok := s.groups[gi]
	if !ok {
		return
	}
	if g.bins[off] == nil {
		return
	}
	g.bins[off] = nil
	g.usedMask &^= 1 << off
	if g.empty() {
		delete(s.groups, gi)
		i := s.seekIndex(gi)
		if i < len(s.order) && s.order[i] == gi {
			s.order = append(s.order[:i], s.order[i+1:]...)
		}
	}
}

// GetOrCreate returns the bin at id, creating an empty one priced at
// binStep if absent.
func (s *BinStore) GetOrCreate(id int32, binStep uint16) (*bin.Bin, error) {
	if b, ok := s.Get(id); ok {
		return b, nil
	}
	b, err := bin.New(id, binStep)
	if err != nil {
		return nil, err
	}
	s.Set(b)
	return b, nil
}

// Len reports the number of occupied bins (not groups).
func (s *BinStore) Len() int {
	n := 0
	for _, gi := range s.order {
		g := s.groups[gi]
		for _, b := range g.bins {
			if b != nil {
				n++
			}
		}
	}
	return n
}

// NextOccupied finds the nearest occupied bin strictly beyond id in the
// given direction (ascending toward +MaxBinID, or descending toward
// MinBinID), used by the swap loop to advance the active bin.
// Returns (nil, false) if none remains in that direction.
func (s *BinStore) NextOccupied(id int32, ascending bool) (*bin.Bin, bool) {
	gi, off := groupOffset(id)

	// First, scan the remainder of the current group, if it exists.
	if g, ok := s.groups[gi]; ok {
		if ascending {
			for o := off + 1; o < GroupSize; o++ {
				if g.bins[o] != nil {
					return g.bins[o], true
				}
			}
		} else {
			for o := int(off) - 1; o >= 0; o-- {
				if g.bins[o] != nil {
					return g.bins[o], true
				}
			}
		}
	}

	// Then seek the next non-empty group in direction via binary search.
	i := s.seekIndex(gi)
	if ascending {
		start := i
		if start < len(s.order) && s.order[start] == gi {
			start++
		}
		for idx := start; idx < len(s.order); idx++ {
			g := s.groups[s.order[idx]]
			for o := 0; o < GroupSize; o++ {
				if g.bins[o] != nil {
					return g.bins[o], true
				}
			}
		}
		return nil, false
	}

	start := i - 1
	if i < len(s.order) && s.order[i] == gi {
		start = i - 1
	}
	for idx := start; idx >= 0; idx-- {
		g := s.groups[s.order[idx]]
		for o := GroupSize - 1; o >= 0; o-- {
			if g.bins[o] != nil {
				return g.bins[o], true
			}
		}
	}
	return nil, false
}

package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyFirst3D(t *testing.T) {
	cands := Candidates3D([3]uint32{4, 4, 1024}, 256, nil)
	require.NotEmpty(t, cands)
	assert.Equal(t, Partition{4, 4, 16, 1}, cands[0])
	assert.Contains(t, cands, Partition{16, 4, 4, 1})
	// {4,15,8} is over the limit and loses items on its last axis
	assert.Contains(t, cands, Partition{4, 15, 4, 1})
}

func TestGreedyFirst2D(t *testing.T) {
	cands := Candidates2D([2]uint32{8, 5}, 64, nil)
	require.NotEmpty(t, cands)
	assert.Equal(t, Partition{8, 5, 1}, cands[0])
	assert.Equal(t, Partition{5, 8, 1}, cands[1])
	assert.LessOrEqual(t, product(cands[0].Local()), uint64(64))
}

func TestCandidatesRespectLimit(t *testing.T) {
	ranges := [][]uint32{
		{1, 1}, {8, 5}, {224, 224}, {3, 1000},
		{1, 1, 1}, {4, 4, 1024}, {7, 13, 5}, {512, 512, 3},
	}
	for _, k := range []uint32{1, 2, 3, 7, 16, 64, 100, 256, 1024} {
		for _, g := range ranges {
			cands, err := Candidates(g, k, nil)
			require.NoError(t, err)
			require.NotEmpty(t, cands)
			for _, p := range cands {
				require.Len(t, p, len(g)+1)
				assert.LessOrEqual(t, product(p.Local()), uint64(k), "k=%d g=%v p=%v", k, g, p)
				for _, v := range p {
					assert.GreaterOrEqual(t, v, uint32(1), "k=%d g=%v p=%v", k, g, p)
				}
				assert.Equal(t, uint32(1), p.Splits())
			}
			assert.Equal(t, fit(greedy(g, k), k, nil), cands[0])
		}
	}
}

func TestCandidatesKOne(t *testing.T) {
	assert.Equal(t, []Partition{{1, 1, 1, 1}}, Candidates3D([3]uint32{9, 9, 9}, 1, nil))
	assert.Equal(t, []Partition{{1, 1, 1}}, Candidates2D([2]uint32{9, 9}, 1, nil))
}

func TestCandidatesUnique(t *testing.T) {
	cands := Candidates3D([3]uint32{64, 64, 64}, 64, nil)
	seen := map[string]bool{}
	for _, p := range cands {
		key := fmt.Sprint(p)
		assert.False(t, seen[key], "duplicate %v", p)
		seen[key] = true
	}
}

func TestCandidatesAxisLimits(t *testing.T) {
	limits := []uint32{256, 256, 64}
	for _, p := range Candidates3D([3]uint32{512, 512, 512}, 256, limits) {
		for i, v := range p.Local() {
			assert.LessOrEqual(t, v, limits[i], "%v", p)
		}
	}
}

func TestFitShrinksFromLastAxis(t *testing.T) {
	assert.Equal(t, Partition{3, 15, 1, 1}, fit([]uint32{3, 15, 9}, 64, nil))
	assert.Equal(t, Partition{1, 4, 2, 1}, fit([]uint32{0, 4, 4}, 8, nil))
	assert.Equal(t, Partition{16, 4, 4, 1}, fit([]uint32{16, 4, 4}, 256, nil))
}

func TestCandidatesBadDims(t *testing.T) {
	_, err := Candidates([]uint32{4}, 64, nil)
	require.ErrorIs(t, err, ErrBadRange)
}

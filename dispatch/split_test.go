package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCount(t *testing.T) {
	cases := []struct {
		name           string
		elapsed, limit float64
		outer, want    uint32
	}{
		{"six bounds over", 6000, 1000, 1024, 7},
		{"under bound", 500, 1000, 10, 1},
		{"at bound", 1000, 1000, 10, 1},
		{"just over", 1001, 1000, 10, 2},
		{"single row", 1e9, 1000, 1, 1},
		{"capped by outer", 1e9, 1000, 50, 50},
		{"two and a half", 2500, 1000, 100, 3},
		{"no limit", 5000, 0, 100, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitCount(tc.elapsed, tc.limit, tc.outer))
		})
	}
}

func TestSubRangesScenario(t *testing.T) {
	got := SubRanges(1024, 7)
	assert.Len(t, got, 8)
	for i := 0; i < 7; i++ {
		assert.Equal(t, SubRange{Offset: uint32(i) * 146, Size: 146}, got[i])
	}
	assert.Equal(t, SubRange{Offset: 1022, Size: 2}, got[7])
}

func TestSubRangesRemainderBlock(t *testing.T) {
	assert.Equal(t, []SubRange{{0, 2}, {2, 2}, {4, 2}, {6, 2}, {8, 2}}, SubRanges(10, 4))
	assert.Equal(t, []SubRange{{0, 3}, {3, 3}, {6, 3}}, SubRanges(9, 3))
	// 13 rows in blocks of 1 leave a last block of 6
	got := SubRanges(13, 7)
	assert.Len(t, got, 8)
	assert.Equal(t, SubRange{7, 6}, got[7])
}

func TestSubRangesCover(t *testing.T) {
	for outer := uint32(1); outer <= 70; outer++ {
		for s := uint32(0); s <= outer+2; s++ {
			rs := SubRanges(outer, s)
			next := uint32(0)
			for _, r := range rs {
				assert.Equal(t, next, r.Offset, "outer=%d s=%d", outer, s)
				assert.Positive(t, r.Size, "outer=%d s=%d", outer, s)
				next = r.Offset + r.Size
			}
			assert.Equal(t, outer, next, "outer=%d s=%d", outer, s)
		}
	}
	assert.Nil(t, SubRanges(0, 3))
	assert.Len(t, SubRanges(5, 0), 1)
	assert.Len(t, SubRanges(5, 9), 5)
	assert.Len(t, SubRanges(5, 2), 3)
}

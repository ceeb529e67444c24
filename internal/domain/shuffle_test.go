package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multiDayCatalog builds rows over the given number of days with rowsPerDay
// rows each. Rows of a day are interleaved with other days when interleave is
// set, so grouping cannot rely on adjacency.
func multiDayCatalog(t *testing.T, days, rowsPerDay int, interleave bool) *Catalog {
	t.Helper()
	var index []time.Time
	for d := 0; d < days; d++ {
		for r := 0; r < rowsPerDay; r++ {
			index = append(index, day1.AddDate(0, 0, d).Add(time.Duration(r)*15*time.Minute))
		}
	}
	if interleave {
		mixed := make([]time.Time, 0, len(index))
		for r := 0; r < rowsPerDay; r++ {
			for d := 0; d < days; d++ {
				mixed = append(mixed, index[d*rowsPerDay+r])
			}
		}
		index = mixed
	}
	pos := make([]float64, len(index))
	for i := range pos {
		pos[i] = float64(i)
	}
	c, err := NewCatalog("", index, NewNumericColumn("pos", pos))
	require.NoError(t, err)
	return c
}

// assertDayBlocks checks that every day of out is one contiguous block whose
// rows appear in the same relative order as in the input.
func assertDayBlocks(t *testing.T, in, out *Catalog) {
	t.Helper()
	require.Equal(t, in.Len(), out.Len())

	inPos, _ := in.Column("pos")
	outPos, _ := out.Column("pos")

	expected := make(map[civilDate][]float64)
	for i, ts := range in.Index {
		expected[dateOf(ts)] = append(expected[dateOf(ts)], inPos.Floats[i])
	}

	got := make(map[civilDate][]float64)
	closed := make(map[civilDate]bool)
	var prev civilDate
	for i, ts := range out.Index {
		d := dateOf(ts)
		if i > 0 && d != prev {
			closed[prev] = true
		}
		require.False(t, closed[d], "day %v is split at row %d", d, i)
		got[d] = append(got[d], outPos.Floats[i])
		prev = d

		// The index travels with its row.
		assert.Equal(t, in.Index[int(outPos.Floats[i])], ts)
	}
	assert.Empty(t, cmp.Diff(expected, got, cmp.AllowUnexported(civilDate{})))
}

func TestShuffleDays_TwoDays(t *testing.T) {
	c := newTwoDayCatalog(t)
	out := ShuffleDays(c, NewRand(1))
	assertDayBlocks(t, c, out)

	pos, _ := out.Column("pos")
	order := pos.Floats
	assert.True(t,
		cmp.Equal(order, []float64{0, 1, 2, 3, 4, 5}) || cmp.Equal(order, []float64{3, 4, 5, 0, 1, 2}),
		"unexpected order %v", order)
}

func TestShuffleDays_Properties(t *testing.T) {
	for _, interleave := range []bool{false, true} {
		c := multiDayCatalog(t, 6, 4, interleave)
		for seed := uint64(0); seed < 50; seed++ {
			assertDayBlocks(t, c, ShuffleDays(c, NewRand(seed)))
		}
	}
}

func TestShuffleDays_Reproducible(t *testing.T) {
	c := multiDayCatalog(t, 10, 3, false)

	a := ShuffleDays(c, NewRand(42))
	b := ShuffleDays(c, NewRand(42))

	assert.Empty(t, cmp.Diff(a, b, cmpopts.EquateNaNs()))
}

func TestShuffleDays_PermutesDays(t *testing.T) {
	c := multiDayCatalog(t, 10, 2, false)
	identity := 0
	for seed := uint64(0); seed < 20; seed++ {
		out := ShuffleDays(c, NewRand(seed))
		if cmp.Equal(out.Index, c.Index) {
			identity++
		}
	}
	assert.Less(t, identity, 20, "day order never changed")
}

func TestShuffleDays_KeepsColumnsAligned(t *testing.T) {
	c := newTwoDayCatalog(t)
	out := ShuffleDays(c, NewRand(7))

	pos, _ := out.Column("pos")
	for i := 0; i < out.Len(); i++ {
		want := c.Row(int(pos.Floats[i]))
		got := out.Row(i)
		assert.Equal(t, want.Fields, got.Fields)
		assert.Equal(t, want.Timestamp, got.Timestamp)
	}
}

func TestShuffleDays_Empty(t *testing.T) {
	c, err := NewCatalog("", nil, NewNumericColumn("BND_GHI", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, ShuffleDays(c, NewRand(0)).Len())
}

func TestDayGroups_OrderedByDate(t *testing.T) {
	c, err := NewCatalog("", []time.Time{day2, day1, day2.Add(time.Hour), day1.Add(time.Hour)},
		NewNumericColumn("BND_GHI", []float64{1, 2, 3, math.NaN()}),
	)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{1, 3}, {0, 2}}, DayGroups(c))
}

func TestDayGroups_UTCDates(t *testing.T) {
	mst := time.FixedZone("MST", -7*60*60)
	local := time.Date(2015, 1, 1, 0, 0, 0, 0, mst)
	// Local 10:00 and 20:00 fall on different UTC dates.
	c, err := NewCatalog("",
		[]time.Time{local.Add(10 * time.Hour), local.Add(20 * time.Hour), local.Add(34 * time.Hour)},
		NewNumericColumn("pos", []float64{0, 1, 2}),
	)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0}, {1, 2}}, DayGroups(c))
	assert.Equal(t, 2, c.Days())
	assert.Equal(t, "2015-01-02", c.Row(1).Day())
	assert.Equal(t, "2015-01-01", c.Row(0).Day())
}

package domain

import (
	"math/rand/v2"
	"sort"
	"time"
)

// civilDate is a UTC calendar date.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(ts time.Time) civilDate {
	y, m, d := ts.UTC().Date()
	return civilDate{year: y, month: m, day: d}
}

func (d civilDate) before(o civilDate) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

// DayGroups partitions row positions by UTC calendar date. Groups are ordered by
// date and rows within a group keep their catalog order.
func DayGroups(c *Catalog) [][]int {
	byDay := make(map[civilDate][]int)
	var days []civilDate
	for i, ts := range c.Index {
		d := dateOf(ts)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], i)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].before(days[j]) })

	groups := make([][]int, len(days))
	for i, d := range days {
		groups[i] = byDay[d]
	}
	return groups
}

// ShuffleDays returns a new catalog whose calendar days appear in a random
// order drawn from rng. Rows of the same day end up adjacent, in their
// original relative order, and keep their index timestamps.
func ShuffleDays(c *Catalog, rng *rand.Rand) *Catalog {
	groups := DayGroups(c)
	rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

	rows := make([]int, 0, c.Len())
	for _, g := range groups {
		rows = append(rows, g...)
	}
	return c.Take(rows)
}

// NewRand returns the deterministic generator used for shuffling.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

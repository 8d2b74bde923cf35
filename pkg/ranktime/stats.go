package ranktime

import (
	"math"
	"sort"
	"time"
)

// GlobalEventStats summarizes one event name across all ranks: the
// largest per-rank maximum and the smallest per-rank minimum, each
// annotated with its owning rank. The two ranks need not coincide.
type GlobalEventStats struct {
	Name    string
	Max     time.Duration
	Min     time.Duration
	MaxRank int
	MinRank int
}

// Imbalance returns the load-balance indicator min/max. It is defined
// as 0 when max is zero; this is a saturating definition, not an error.
func (s GlobalEventStats) Imbalance() float64 {
	if s.Max == 0 {
		return 0
	}
	return float64(s.Min) / float64(s.Max)
}

// GlobalStats derives cross-rank summaries from collected per-rank
// data, one entry per event name, ordered by ascending name. It is
// recomputed on demand and never stored.
func GlobalStats(ranks []*RankData) []GlobalEventStats {
	byName := make(map[string]*GlobalEventStats)
	for rank, rd := range ranks {
		for _, name := range rd.EventNames() {
			data, _ := rd.Event(name)
			stats, ok := byName[name]
			if !ok {
				stats = &GlobalEventStats{
					Name: name,
					Max:  time.Duration(math.MinInt64),
					Min:  time.Duration(math.MaxInt64),
				}
				byName[name] = stats
			}
			if data.Max() > stats.Max {
				stats.Max = data.Max()
				stats.MaxRank = rank
			}
			if data.Min() < stats.Min {
				stats.Min = data.Min()
				stats.MinRank = rank
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GlobalEventStats, 0, len(names))
	for _, name := range names {
		out = append(out, *byName[name])
	}
	return out
}

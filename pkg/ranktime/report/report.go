// Package report renders finalized registry data: the human-readable
// timing tables, CSV and state-change listings, and the structured JSON
// run log.
//
// Precision policy: all ratios (time share, min/max imbalance) are
// computed from untruncated nanosecond durations; milliseconds appear
// only in rendered output.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/randalmurphal/ranktime/pkg/ranktime"
)

// WriteTimings writes the full interactive report: run banner, this
// rank's per-event table, and the cross-rank statistics table. Call it
// on the coordinator after Finalize; non-coordinator ranks have no
// collected data and get no global table.
func WriteTimings(w io.Writer, reg *ranktime.Registry) error {
	if err := WriteLocal(w, reg); err != nil {
		return err
	}
	global := reg.GlobalRankData()
	if len(global) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return WriteGlobalStats(w, global)
}

// WriteLocal writes the run banner and this rank's per-event table
// only. It needs no collected data, so it also serves the best-effort
// shutdown path.
func WriteLocal(w io.Writer, reg *ranktime.Registry) error {
	local := reg.LocalRankData()
	duration := reg.Duration()

	size := 1
	if c := reg.Comm(); c != nil {
		size = c.Size()
	}

	fmt.Fprintf(w, "Run finished at %s\n", reg.FinishedAt().Format(time.ANSIC))
	fmt.Fprintf(w, "Global runtime       = %dms / %.3fs\n",
		duration.Milliseconds(), duration.Seconds())
	fmt.Fprintf(w, "Number of processors = %d\n", size)
	fmt.Fprintf(w, "# Rank: %d\n\n", local.Rank())

	t := newTable(w)
	t.addColumn("Event", maxNameWidth(local))
	t.addColumn("Count", 10)
	t.addColumn("Total[ms]", 10)
	t.addColumn("Max[ms]", 10)
	t.addColumn("Min[ms]", 10)
	t.addColumn("Avg[ms]", 10)
	t.addColumn("P50[ms]", 10)
	t.addColumn("P90[ms]", 10)
	t.addColumn("P99[ms]", 10)
	t.addFloatColumn("Time%", 6, 1)
	t.printHeader()

	for _, name := range local.EventNames() {
		data, _ := local.Event(name)
		share := 0.0
		if duration > 0 {
			share = 100 * float64(data.Total()) / float64(duration)
		}
		t.printRow(
			data.Name(),
			data.Count(),
			data.Total().Milliseconds(),
			data.Max().Milliseconds(),
			data.Min().Milliseconds(),
			data.Avg().Milliseconds(),
			data.Percentile(50).Milliseconds(),
			data.Percentile(90).Milliseconds(),
			data.Percentile(99).Milliseconds(),
			share,
		)
	}
	return nil
}

// WriteGlobalStats writes the cross-rank table: per event name the
// largest maximum and smallest minimum with their owning ranks, and the
// min/max load-balance ratio.
func WriteGlobalStats(w io.Writer, ranks []*ranktime.RankData) error {
	width := len("Name")
	for _, rd := range ranks {
		if n := maxNameWidth(rd); n > width {
			width = n
		}
	}

	t := newTable(w)
	t.addColumn("Name", width)
	t.addColumn("Max[ms]", 10)
	t.addColumn("MaxOnRank", 10)
	t.addColumn("Min[ms]", 10)
	t.addColumn("MinOnRank", 10)
	t.addFloatColumn("Min/Max", 10, 3)
	t.printHeader()

	for _, stats := range ranktime.GlobalStats(ranks) {
		t.printRow(
			stats.Name,
			stats.Max.Milliseconds(),
			stats.MaxRank,
			stats.Min.Milliseconds(),
			stats.MinRank,
			stats.Imbalance(),
		)
	}
	return nil
}

// WriteCSV writes one line per local event:
// name,count,total,max,min,avg,timePercentage (durations in ms).
func WriteCSV(w io.Writer, reg *ranktime.Registry) error {
	local := reg.LocalRankData()
	duration := reg.Duration()

	if _, err := fmt.Fprintln(w, "name,count,total,max,min,avg,timePercentage"); err != nil {
		return err
	}
	for _, name := range local.EventNames() {
		data, _ := local.Event(name)
		_, err := fmt.Fprintf(w, "%s,%d,%d,%d,%d,%d,%d\n",
			data.Name(),
			data.Count(),
			data.Total().Milliseconds(),
			data.Max().Milliseconds(),
			data.Min().Milliseconds(),
			data.Avg().Milliseconds(),
			data.TimePercentage(duration),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteEventLog writes every recorded state change of the local rank,
// one per line: eventName,state,timestampMs.
func WriteEventLog(w io.Writer, reg *ranktime.Registry) error {
	local := reg.LocalRankData()
	for _, name := range local.EventNames() {
		data, _ := local.Event(name)
		for _, sc := range data.StateChanges() {
			_, err := fmt.Fprintf(w, "%s,%s,%d\n",
				data.Name(), sc.State, sc.Timestamp/int64(time.Millisecond))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func maxNameWidth(rd *ranktime.RankData) int {
	width := len("Event")
	for _, name := range rd.EventNames() {
		if len(name) > width {
			width = len(name)
		}
	}
	return width
}

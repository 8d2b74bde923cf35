package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphal/ranktime/pkg/ranktime"
)

// TimestampLayout formats log timestamps with millisecond precision,
// e.g. "2019-01-10T18:30:46.834".
const TimestampLayout = "2006-01-02T15:04:05.000"

// LogDocument is the structured run log written by the coordinator.
// Durations are whole milliseconds.
type LogDocument struct {
	Name        string      `json:"Name"`
	RunID       string      `json:"RunID,omitempty"`
	Application string      `json:"Application,omitempty"`
	Initialized string      `json:"Initialized"`
	Finalized   string      `json:"Finalized"`
	Ranks       []RankEntry `json:"Ranks"`
}

// RankEntry is one rank's slice of the run log.
type RankEntry struct {
	Initialized  string             `json:"Initialized"`
	Finalized    string             `json:"Finalized"`
	Events       []EventEntry       `json:"Events"`
	StateChanges []StateChangeEntry `json:"StateChanges,omitempty"`
}

// EventEntry is one aggregated event within a rank entry.
type EventEntry struct {
	Name      string  `json:"Name"`
	Count     int64   `json:"Count"`
	Total     int64   `json:"Total"`
	Max       int64   `json:"Max"`
	Min       int64   `json:"Min"`
	TimeRatio float64 `json:"TimeRatio"`
	Data      []int64 `json:"Data,omitempty"`
}

// StateChangeEntry is one recorded state transition, with its timestamp
// in milliseconds on the run's shared timeline.
type StateChangeEntry struct {
	Name      string `json:"Name"`
	State     string `json:"State"`
	Timestamp int64  `json:"Timestamp"`
}

// BuildLog assembles the log document from collected data. Rank entries
// appear in ascending rank order; events within a rank in ascending
// name order.
func BuildLog(reg *ranktime.Registry) LogDocument {
	first, last := reg.RunWindow()
	doc := LogDocument{
		Name:        reg.RunName(),
		RunID:       reg.RunID(),
		Application: reg.ApplicationName(),
		Initialized: first.Format(TimestampLayout),
		Finalized:   last.Format(TimestampLayout),
	}

	ranks := reg.GlobalRankData()
	if len(ranks) == 0 {
		// Best-effort path: only the local rank is available.
		ranks = []*ranktime.RankData{reg.LocalRankData()}
	}

	for _, rd := range ranks {
		entry := RankEntry{
			Initialized: rd.InitializedAt().Format(TimestampLayout),
			Finalized:   rd.FinalizedAt().Format(TimestampLayout),
			Events:      make([]EventEntry, 0, rd.Len()),
		}
		duration := rd.Duration()
		for _, name := range rd.EventNames() {
			data, _ := rd.Event(name)
			ratio := 0.0
			if duration > 0 {
				ratio = float64(data.Total()) / float64(duration)
			}
			entry.Events = append(entry.Events, EventEntry{
				Name:      data.Name(),
				Count:     data.Count(),
				Total:     data.Total().Milliseconds(),
				Max:       data.Max().Milliseconds(),
				Min:       data.Min().Milliseconds(),
				TimeRatio: ratio,
				Data:      data.Data(),
			})
			for _, sc := range data.StateChanges() {
				entry.StateChanges = append(entry.StateChanges, StateChangeEntry{
					Name:      data.Name(),
					State:     sc.State,
					Timestamp: sc.Timestamp / int64(time.Millisecond),
				})
			}
		}
		doc.Ranks = append(doc.Ranks, entry)
	}
	return doc
}

// WriteLog writes the document as indented JSON.
func WriteLog(w io.Writer, doc LogDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// LogFileName names the run log after the application: "Events.json"
// when the application name is empty, "<name>-events.json" otherwise.
func LogFileName(applicationName string) string {
	if applicationName == "" {
		return "Events.json"
	}
	return applicationName + "-events.json"
}

// WriteFile writes the JSON run log into dir. The log is regenerated
// each run and written only by the coordinator; on other ranks WriteFile
// does nothing and returns an empty path.
func WriteFile(reg *ranktime.Registry, dir string) (string, error) {
	if c := reg.Comm(); c != nil && c.Rank() != ranktime.Coordinator {
		return "", nil
	}

	path := filepath.Join(dir, LogFileName(reg.ApplicationName()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create run log: %w", err)
	}
	defer f.Close()

	if err := WriteLog(f, BuildLog(reg)); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

// WriteAll prints the interactive report to w and writes the JSON log
// into dir, coordinator only.
func WriteAll(w io.Writer, reg *ranktime.Registry, dir string) error {
	if c := reg.Comm(); c != nil && c.Rank() != ranktime.Coordinator {
		return nil
	}
	if err := WriteTimings(w, reg); err != nil {
		return err
	}
	_, err := WriteFile(reg, dir)
	return err
}

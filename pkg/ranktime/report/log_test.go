package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ranktime/pkg/ranktime"
	"github.com/randalmurphal/ranktime/pkg/ranktime/comm"
)

func TestTimestampLayout(t *testing.T) {
	ts := time.Date(2019, 1, 10, 18, 30, 46, 834_000_000, time.UTC)
	assert.Equal(t, "2019-01-10T18:30:46.834", ts.Format(TimestampLayout))
}

func TestBuildLog(t *testing.T) {
	reg := finalizedRegistry(t)
	doc := BuildLog(reg)

	assert.Equal(t, "run-1", doc.Name)
	assert.Equal(t, "flow", doc.Application)
	assert.Equal(t, reg.RunID(), doc.RunID)
	assert.NotEmpty(t, doc.Initialized)
	assert.NotEmpty(t, doc.Finalized)

	require.Len(t, doc.Ranks, 1)
	entry := doc.Ranks[0]
	require.Len(t, entry.Events, 3)

	// Ascending name order within the rank.
	assert.Equal(t, ranktime.GlobalEventName, entry.Events[0].Name)
	assert.Equal(t, "assemble", entry.Events[1].Name)
	assert.Equal(t, "solve", entry.Events[2].Name)

	solve := entry.Events[2]
	assert.Equal(t, int64(2), solve.Count)
	assert.Equal(t, int64(300), solve.Total)
	assert.Equal(t, int64(200), solve.Max)
	assert.Equal(t, int64(100), solve.Min)
	assert.Greater(t, solve.TimeRatio, 0.0)
	assert.Less(t, solve.TimeRatio, 1.0)
}

func TestBuildLogStateChanges(t *testing.T) {
	reg := ranktime.NewRegistry()

	ev := ranktime.NewCompletedEvent("solve", 50*time.Millisecond)
	ev.RecordStateAt("converged", int64(30*time.Millisecond))
	reg.Put(ev)

	doc := BuildLog(reg)
	require.Len(t, doc.Ranks, 1)
	require.Len(t, doc.Ranks[0].StateChanges, 1)

	sc := doc.Ranks[0].StateChanges[0]
	assert.Equal(t, "solve", sc.Name)
	assert.Equal(t, "converged", sc.State)
	assert.Equal(t, int64(30), sc.Timestamp)
}

func TestBuildLogFallsBackToLocalRank(t *testing.T) {
	// No collected data: the local rank still produces a one-rank log.
	reg := ranktime.NewRegistry()
	reg.Put(ranktime.NewCompletedEvent("solve", time.Millisecond))

	doc := BuildLog(reg)
	require.Len(t, doc.Ranks, 1)
	require.Len(t, doc.Ranks[0].Events, 1)
	assert.Equal(t, "solve", doc.Ranks[0].Events[0].Name)
}

func TestWriteLogIsIndentedJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, LogDocument{Name: "run"}))

	assert.Contains(t, buf.String(), "\n  \"Name\": \"run\"")

	var decoded LogDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run", decoded.Name)
}

func TestLogFileName(t *testing.T) {
	assert.Equal(t, "Events.json", LogFileName(""))
	assert.Equal(t, "flow-events.json", LogFileName("flow"))
}

func TestWriteFile(t *testing.T) {
	reg := finalizedRegistry(t)
	dir := t.TempDir()

	path, err := WriteFile(reg, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flow-events.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc LogDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, reg.RunID(), doc.RunID)
	require.Len(t, doc.Ranks, 1)
}

func TestWriteFileNonCoordinatorIsNoop(t *testing.T) {
	comms, err := comm.NewLocalGroup(2)
	require.NoError(t, err)

	reg := ranktime.NewRegistry()
	require.NoError(t, reg.Initialize("flow", "run", comms[1]))
	require.NoError(t, reg.BestEffortShutdown())

	dir := t.TempDir()
	path, err := WriteFile(reg, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteAll(t *testing.T) {
	reg := finalizedRegistry(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, reg, dir))

	assert.Contains(t, buf.String(), "Run finished at")
	_, err := os.Stat(filepath.Join(dir, "flow-events.json"))
	assert.NoError(t, err)
}

package profiler

import (
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsAtInterval(t *testing.T) {
	rec, logger := logging.NewRecorder()
	p := NewProfiler(logger, time.Second)
	start := p.lastTime
	clock := start
	p.now = func() time.Time { return clock }

	clock = start.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(FrameStats{Instances: 10, DrawCommands: 2}))
	clock = start.Add(800 * time.Millisecond)
	assert.False(t, p.Tick(FrameStats{Instances: 30, DrawCommands: 4, SkinningDropped: 1}))
	assert.Equal(t, 40, p.Totals().Instances)

	clock = start.Add(1200 * time.Millisecond)
	assert.True(t, p.Tick(FrameStats{Instances: 20, SkinningDropped: 2}))
	assert.Zero(t, p.Totals())

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, slog.LevelInfo, records[0].Level)
	assert.Equal(t, 20.0, records[0].Attrs["instances"])
	assert.Equal(t, 2.0, records[0].Attrs["drawCommands"])
	assert.Equal(t, int64(3), records[0].Attrs["skinningDropped"])
}

func TestNewProfilerDefaults(t *testing.T) {
	p := NewProfiler(nil, 0)
	assert.Equal(t, time.Second, p.updateInterval)
	assert.False(t, p.Tick(FrameStats{}))
}

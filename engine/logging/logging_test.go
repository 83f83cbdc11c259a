package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCapturesAttrs(t *testing.T) {
	rec, log := NewRecorder()
	log.With("system", "skinning").Error("bad mesh", "mesh", 3)
	log.Info("ok")

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, slog.LevelError, records[0].Level)
	assert.Equal(t, "skinning", records[0].Attrs["system"])
	assert.Equal(t, int64(3), records[0].Attrs["mesh"])
	assert.Equal(t, 1, rec.Count(slog.LevelError))
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

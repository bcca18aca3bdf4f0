package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, sonic.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestSlogServiceLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewSlogLogger(&buf, "json", "trace")
	require.NoError(t, err)

	logger := NewSlogServiceLogger(base).With(LogFields{"session_id": "s-1"})
	logger.Trace("tick", nil)
	logger.Debug("flush", LogFields{"batch": 3})
	logger.Info("started", nil)
	logger.Warn("transport unhealthy", LogFields{"detail": "down"})
	logger.Error("send failed", errors.New("boom"), nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 5)
	assert.Equal(t, "DEBUG-4", lines[0]["level"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
	assert.Equal(t, float64(3), lines[1]["batch"])
	assert.Equal(t, "WARN", lines[3]["level"])
	assert.Equal(t, "down", lines[3]["detail"])
	assert.Equal(t, "ERROR", lines[4]["level"])
	assert.Equal(t, "boom", lines[4]["error"])
	for _, line := range lines {
		assert.Equal(t, "s-1", line["session_id"])
	}
}

func TestNewSlogLoggerRejectsUnknownValues(t *testing.T) {
	_, err := NewSlogLogger(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)
	_, err = NewSlogLogger(&bytes.Buffer{}, "text", "loud")
	assert.Error(t, err)

	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}

func TestWatermillServiceLoggerWarnUsesInfo(t *testing.T) {
	captured := watermill.NewCaptureLogger()
	logger := NewWatermillServiceLogger(captured)

	logger.Warn("slow", LogFields{"ms": 120})

	infos := captured.Captured()[watermill.InfoLogLevel]
	require.Len(t, infos, 1)
	assert.Equal(t, "slow", infos[0].Msg)
	assert.Equal(t, "warn", infos[0].Fields["level"])
	assert.Equal(t, 120, infos[0].Fields["ms"])
}

func TestWatermillAdapterRoundTrip(t *testing.T) {
	captured := watermill.NewCaptureLogger()
	adapter := NewWatermillAdapter(NewWatermillServiceLogger(captured))

	boom := errors.New("boom")
	adapter.With(watermill.LogFields{"topic": "t"}).Error("publish failed", boom, nil)

	errs := captured.Captured()[watermill.ErrorLogLevel]
	require.Len(t, errs, 1)
	assert.Equal(t, "publish failed", errs[0].Msg)
	assert.Equal(t, boom, errs[0].Err)
	assert.Equal(t, "t", errs[0].Fields["topic"])
}

func TestConstructorsPanicOnNil(t *testing.T) {
	assert.Panics(t, func() { NewSlogServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillAdapter(nil) })
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().With(LogFields{"a": 1}).Error("x", errors.New("y"), nil)
	})
}

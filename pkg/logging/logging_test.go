package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := WithComponent(New(Config{Level: "warn", Output: &buf}), "teleop")

	log.Info().Msg("hidden")
	log.Warn().Int("pin", 10).Msg("send failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "teleop", entry["component"])
	assert.Equal(t, "send failed", entry["message"])
	assert.EqualValues(t, 10, entry["pin"])
	assert.Contains(t, entry, "time")
}

func TestNewBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "loud", Output: &buf})

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestLineWriter(t *testing.T) {
	w := NewLineWriter(2)
	log := New(Config{Output: w, Console: true, NoColor: true})

	log.Info().Msg("recording started")
	log.Info().Msg("recording stopped")
	log.Info().Msg("dropped")

	first := <-w.Lines()
	assert.Contains(t, first, "INF")
	assert.Contains(t, first, "recording started")
	assert.Contains(t, <-w.Lines(), "recording stopped")

	select {
	case line := <-w.Lines():
		t.Fatalf("expected full buffer to drop, got %q", line)
	default:
	}
}

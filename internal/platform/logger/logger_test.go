package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efti-gate/internal/platform/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json handler tags the service", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
		log.Info("control created", "request_id", "abc")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "efti-gate", line["service"])
		assert.Equal(t, "abc", line["request_id"])
	})

	t.Run("level filters debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "text"})
		log.Debug("hidden")
		log.Info("hidden too")
		assert.Empty(t, buf.String())

		log.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}

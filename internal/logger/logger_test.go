package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("taskflow", "debug", &buf)

	Component(log, "expander").WithField("count", 3).Debug("instances generated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "taskflow", line["service"])
	assert.Equal(t, "expander", line["component"])
	assert.Equal(t, "instances generated", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Contains(t, line, "ts")
	assert.EqualValues(t, 3, line["count"])
}

func TestNewWithOutput_LevelFallback(t *testing.T) {
	log := NewWithOutput("taskflow", "chatty", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log = NewWithOutput("taskflow", "warn", &bytes.Buffer{})
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}

func TestComponent_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Component(nil, "bot").Info("dropped")
	})
}

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestInitJSONWithComponent(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	var buf bytes.Buffer
	Init("debug", FormatJSON, &buf)
	logger := WithComponent("bank")
	logger.Debug().Uint32("code", 5).Msg("transaction failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bank", entry["component"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, float64(5), entry["code"])
}

func TestInitFiltersBelowLevel(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	var buf bytes.Buffer
	Init("error", FormatJSON, &buf)
	Logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}

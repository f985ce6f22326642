package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHelpersTagEntries(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithFields(WithUserID(WithTraceID(base, "trace-1"), 42), map[string]interface{}{
		"method": "POST",
		"path":   "/api/payments/deposit/",
	})
	logger.Info().Msg("Payment submitted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/api/payments/deposit/", entry["path"])
	assert.Equal(t, "Payment submitted", entry["message"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("verbose"))
}

package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	logger.Debug("scanning", "root", "/repo")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scanning", entry["msg"])
	assert.Equal(t, "/repo", entry["root"])
	assert.Equal(t, "DEBUG", entry["level"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{" WARN ", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLogLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	got, err := ParseLogFormat("Text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, got)

	got, err = ParseLogFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestGetOptimalPoolSize(t *testing.T) {
	size := GetOptimalPoolSize()
	assert.GreaterOrEqual(t, size, 4)
	assert.LessOrEqual(t, size, 32)

	assert.Equal(t, 7, GetOptimalPoolSizeWithOverride(7))
	assert.Equal(t, size, GetOptimalPoolSizeWithOverride(0))
}

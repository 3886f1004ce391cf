package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	Init()

	require.NotNil(t, InfoLogger)
	require.NotNil(t, ErrorLogger)
	require.NotNil(t, DebugLogger)
}

func TestFormatKV(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		kv       []interface{}
		expected string
	}{
		{"no pairs", "plain message", nil, "plain message"},
		{"one pair", "deposit confirmed", []interface{}{"reference", "SSV-DEP-1"}, "deposit confirmed reference=SSV-DEP-1"},
		{"two pairs", "booking", []interface{}{"allocation_id", 15, "refund", "90000.00"}, "booking allocation_id=15 refund=90000.00"},
		{"dangling key", "oops", []interface{}{"key"}, "oops key="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatKV(tt.msg, tt.kv))
		})
	}
}

func TestInfoWritesPrefixedLine(t *testing.T) {
	Init()

	var buf bytes.Buffer
	InfoLogger = log.New(&buf, "INFO: ", log.Lshortfile)
	defer Init()

	Info("server started", "port", "8080")

	out := buf.String()
	assert.Contains(t, out, "INFO: ")
	assert.Contains(t, out, "server started port=8080")
}

func TestErrorfFormats(t *testing.T) {
	Init()

	var buf bytes.Buffer
	ErrorLogger = log.New(&buf, "ERROR: ", log.Lshortfile)
	defer Init()

	Errorf("failed to queue notification for user %d: %v", 7, assert.AnError)

	out := buf.String()
	assert.Contains(t, out, "ERROR: ")
	assert.Contains(t, out, "failed to queue notification for user 7")
}

func TestDebugUsesOwnLogger(t *testing.T) {
	Init()

	var buf bytes.Buffer
	DebugLogger = log.New(&buf, "DEBUG: ", 0)
	defer Init()

	Debug("cache miss", "key", "stock_board")

	assert.Equal(t, "DEBUG: cache miss key=stock_board\n", buf.String())
}

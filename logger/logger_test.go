package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, log.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, log.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, log.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, log.InfoLevel, ParseLevel(""))
}

func TestConfigureToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stencil.log")
	require.NoError(t, Configure("warn", path))
	t.Cleanup(func() { _ = Configure("info", "") })

	assert.Equal(t, log.WarnLevel, Logger.GetLevel())
}

func TestConfigureClosesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	t.Cleanup(func() { _ = Configure("info", "") })

	require.NoError(t, Configure("info", first))
	previous := logFile
	require.NotNil(t, previous)

	require.NoError(t, Configure("info", second))
	_, err := previous.Write([]byte("x"))
	assert.True(t, errors.Is(err, os.ErrClosed))

	Info("after reconfigure")
	require.NoError(t, Configure("info", ""))
	assert.Nil(t, logFile)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after reconfigure")
	data, err = os.ReadFile(first)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "after reconfigure")
}

func TestTokenUnresolved(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("debug", ""))
	SetOutput(&buf)
	t.Cleanup(func() { _ = Configure("info", "") })

	TokenUnresolved("{{missing}}", "unknown variable", nil)
	assert.Contains(t, buf.String(), "{{missing}}")
	assert.Contains(t, buf.String(), "unknown variable")
}

package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_TextToStdout(t *testing.T) {
	l := logrus.New()
	Configure(l, "debug", "")

	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestConfigure_InvalidLevel(t *testing.T) {
	l := logrus.New()
	Configure(l, "chatty", "")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestConfigure_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamer.log")
	l := logrus.New()
	Configure(l, "info", path)

	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	l.WithField("pool", "abc").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pool":"abc"`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestLogConnection(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogConnection("Solana RPC", nil)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "Solana RPC", hook.LastEntry().Data["service"])

	endpoint := "https://rpc.example.com/?api-key=abc123"
	LogConnection("Solana RPC", errors.New("Post \""+endpoint+"\": connection refused"), endpoint)
	require.Len(t, hook.Entries, 2)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.NotContains(t, entry.Data["error"], "abc123")
	assert.Contains(t, entry.Data["error"], "connection refused")
}

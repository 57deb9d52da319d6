package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	log, closeFn, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	log.Info("session joined", "sessionID", 7)
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session joined")
	assert.Contains(t, string(data), `"sessionID":7`)
}

func TestNew_LevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	log, closeFn, err := New(Options{Level: "warn", File: path})
	require.NoError(t, err)

	log.Info("below threshold")
	closeFn()

	data, _ := os.ReadFile(path)
	assert.NotContains(t, string(data), "below threshold")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

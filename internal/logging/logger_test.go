package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)

	lvl, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "pipeline.log")
	var buf bytes.Buffer

	l, err := New(Config{Level: "info", OutputFile: path, JSONFormat: true, Output: &buf})
	require.NoError(t, err)

	l.WithField("stage", "transform").Info("hello")
	l.Debug("hidden")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"transform"`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, string(data), buf.String())
}

func TestRotateIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))
	require.NoError(t, os.WriteFile(path+".1", []byte("old"), 0644))

	require.NoError(t, rotateIfNeeded(path, 32, 3))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64)

	older, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "old", string(older))
}

func TestRotateSkipsSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0644))

	require.NoError(t, rotateIfNeeded(path, 1024, 3))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

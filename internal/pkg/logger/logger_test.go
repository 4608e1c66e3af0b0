package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyWriterAppends(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyWriter(dir)
	require.NoError(t, err)

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestNewWithFileSink(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Env: "production", Dir: dir})
	require.NoError(t, err)
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

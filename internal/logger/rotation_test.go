package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "nested", "app.log")

	w, err := NewRotatingWriter(logFile, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestRotatingWriterAppends(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")
	require.NoError(t, os.WriteFile(logFile, []byte("existing\n"), 0644))

	w, err := NewRotatingWriter(logFile, 1, 3)
	require.NoError(t, err)

	_, err = w.Write([]byte("appended\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "existing\nappended\n", string(data))
}

func TestRotatingWriterRotates(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")

	w, err := NewRotatingWriter(logFile, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	line := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 5; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	backups, err := w.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 2, "only the newest backups are kept")

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(1024*1024))
}

func TestRotatingWriterWithoutLimit(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "app.log")

	w, err := NewRotatingWriter(logFile, 0, 0)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(strings.Repeat("y", 1024)))
		require.NoError(t, err)
	}

	backups, err := w.Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRotatingWriterClosed(t *testing.T) {
	tmpDir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(tmpDir, "app.log"), 1, 1)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

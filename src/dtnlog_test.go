package dtn

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDtnlogDisabled(t *testing.T) {
	var dl, err = dtnlog_init(false, "")
	require.NoError(t, err)

	// Must be a quiet no-op, not a crash.
	dl.log_sent(1, 0, 2, 1000)
	dl.close()
}

func TestDtnlogWritesRecords(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "run.log")

	var dl, err = dtnlog_init(false, path)
	require.NoError(t, err)

	dl.log_sent(1, 42, 2, 1000000)
	dl.log_received(2, 42, 1, 2000000)
	dl.log_position(1, 1500000, position_t{x: 10, y: 20})
	dl.close()

	var raw, readErr = os.ReadFile(path)
	require.NoError(t, readErr)

	var lines = strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "sent,1,2,42,1000000", lines[0])
	assert.Equal(t, "received,2,1,42,2000000", lines[1])
	assert.Equal(t, "track,1,1500000,10,20", lines[2])
}

func TestDtnlogDailyNamesCreateDirectory(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "dtnlog")

	var dl, err = dtnlog_init(true, dir)
	require.NoError(t, err)

	dl.log_sent(1, 0, 2, 1000)
	dl.close()

	var entries, readErr = os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".log"))
}

func TestDtnlogRejectsFileAsDirectory(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	var _, err = dtnlog_init(true, path)
	assert.Error(t, err)
}

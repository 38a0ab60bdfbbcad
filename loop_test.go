package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pv/conf"
)

func TestFirstUpdateDelay(t *testing.T) {
	control := &conf.Control{Interval: time.Second}
	assert.Equal(t, time.Second, firstUpdateDelay(control))

	control.DelayStart = 3 * time.Second
	assert.Equal(t, 3*time.Second, firstUpdateDelay(control))
}

func TestGuessTotalSize(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, make([]byte, 100), 0644))
	require.NoError(t, os.WriteFile(b, make([]byte, 250), 0644))

	control := &conf.Control{Files: []string{a, b}}
	assert.Equal(t, int64(350), guessTotalSize(control))

	// Standard input makes the total unknowable.
	control.Files = []string{a, "-"}
	assert.Equal(t, int64(0), guessTotalSize(control))
}

func TestGuessTotalSizeLineMode(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(a, []byte("x\ny\nz\n"), 0644))

	control := &conf.Control{Files: []string{a}, LineMode: true}
	assert.Equal(t, int64(3), guessTotalSize(control))
}

func TestOpenOutputDefaultBufferSize(t *testing.T) {
	control := &conf.Control{}
	fd, _, closer, err := openOutput(control)
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, int(os.Stdout.Fd()), fd)
	assert.Greater(t, control.TargetBufferSize, 0)
	assert.LessOrEqual(t, control.TargetBufferSize, conf.BufferSizeMax)
}

func TestOpenOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	control := &conf.Control{OutputPath: path}
	fd, isPipe, closer, err := openOutput(control)
	require.NoError(t, err)
	defer closer()
	assert.False(t, isPipe)
	assert.GreaterOrEqual(t, fd, 0)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenOutputDiscard(t *testing.T) {
	control := &conf.Control{DiscardInput: true}
	fd, _, closer, err := openOutput(control)
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, -1, fd)
}

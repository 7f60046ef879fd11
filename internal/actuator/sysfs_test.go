package actuator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/cpuset"
)

// newSysfsTree lays out a cpu directory where core 0 has no online file.
func newSysfsTree(t *testing.T, possible string, online map[int]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "possible"), []byte(possible+"\n"), 0o644))
	for id, v := range online {
		dir := filepath.Join(root, "cpu"+strconv.Itoa(id))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "online"), []byte(v+"\n"), 0o644))
	}
	return root
}

func TestSysfsProviderReadsState(t *testing.T) {
	root := newSysfsTree(t, "0-3", map[int]string{1: "1", 2: "0", 3: "0"})

	p, err := NewSysfsProvider(root)
	require.NoError(t, err)

	assert.True(t, p.Possible().Equals(cpuset.New(0, 1, 2, 3)))
	online, err := p.Online()
	require.NoError(t, err)
	assert.True(t, online.Equals(cpuset.New(0, 1)))
	assert.Equal(t, 2, p.OnlineCount())
}

func TestSysfsProviderTransitions(t *testing.T) {
	root := newSysfsTree(t, "0-3", map[int]string{1: "1", 2: "0", 3: "0"})
	p, err := NewSysfsProvider(root)
	require.NoError(t, err)

	require.NoError(t, p.BringOnline(context.Background(), 2))
	data, err := os.ReadFile(filepath.Join(root, "cpu2", "online"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
	assert.Equal(t, 3, p.OnlineCount())

	require.NoError(t, p.BringOffline(context.Background(), 1))
	online, err := p.Online()
	require.NoError(t, err)
	assert.True(t, online.Equals(cpuset.New(0, 2)))
}

func TestSysfsProviderRejects(t *testing.T) {
	root := newSysfsTree(t, "0-1", map[int]string{1: "1"})
	p, err := NewSysfsProvider(root)
	require.NoError(t, err)

	assert.ErrorIs(t, p.BringOffline(context.Background(), 0), ErrPrimaryCore)
	assert.ErrorIs(t, p.BringOnline(context.Background(), 7), ErrUnknownCore)
}

func TestSysfsProviderWriteFailure(t *testing.T) {
	root := newSysfsTree(t, "0-1", map[int]string{1: "0"})
	p, err := NewSysfsProvider(root)
	require.NoError(t, err)

	orig := writeFile
	writeFile = func(string, []byte, os.FileMode) error { return fs.ErrPermission }
	defer func() { writeFile = orig }()

	err = p.BringOnline(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.Equal(t, 1, p.OnlineCount(), "a failed write must not change the cached count")
}

func TestNewSysfsProviderErrors(t *testing.T) {
	testCases := []struct {
		name     string
		possible string
	}{
		{name: "unparsable", possible: "zero"},
		{name: "no primary core", possible: "1-3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := newSysfsTree(t, tc.possible, nil)
			_, err := NewSysfsProvider(root)
			assert.Error(t, err)
		})
	}

	_, err := NewSysfsProvider(t.TempDir())
	assert.Error(t, err, "missing possible file")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholdTable(t *testing.T) {
	table := DefaultThresholdTable()
	require.NoError(t, table.Validate())
	assert.Equal(t, 500*time.Millisecond, table.Interval)
	assert.Len(t, table.Levels, 4)
}

func TestThresholdTableLevel(t *testing.T) {
	table := DefaultThresholdTable()

	tests := []struct {
		name   string
		online int
		want   int
	}{
		{name: "Test case 1: exact level", online: 2, want: 2},
		{name: "Test case 2: zero online maps to the first level", online: 0, want: 1},
		{name: "Test case 3: more cores than levels maps to the last level", online: 8, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Level(tt.online).Online)
		})
	}
}

func TestParseThresholdTable(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantErr   bool
		checkFunc func(t *testing.T, table ThresholdTable)
	}{
		{
			name: "Test case 1: full table",
			yaml: `
interval: 250ms
levels:
  - online: 1
    upDepth: 150
    upHold: 50ms
    downDepth: 0
  - online: 2
    upDepth: 0
    downDepth: 80
    downHold: 100ms
`,
			checkFunc: func(t *testing.T, table ThresholdTable) {
				assert.Equal(t, 250*time.Millisecond, table.Interval)
				require.Len(t, table.Levels, 2)
				assert.Equal(t, uint32(150), table.Levels[0].UpDepth)
				assert.Equal(t, 50*time.Millisecond, table.Levels[0].UpHold)
				assert.Equal(t, 100*time.Millisecond, table.Levels[1].DownHold)
			},
		},
		{
			name: "Test case 2: interval only keeps the default levels",
			yaml: "interval: 1s\n",
			checkFunc: func(t *testing.T, table ThresholdTable) {
				assert.Equal(t, time.Second, table.Interval)
				assert.Len(t, table.Levels, 4)
			},
		},
		{
			name:    "Test case 3: levels out of order",
			yaml:    "levels:\n  - online: 2\n    upDepth: 10\n",
			wantErr: true,
		},
		{
			name:    "Test case 4: zero interval",
			yaml:    "interval: 0s\n",
			wantErr: true,
		},
		{
			name:    "Test case 5: malformed yaml",
			yaml:    "interval: [\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseThresholdTable([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, table)
		})
	}
}

func TestLoadThresholdTable(t *testing.T) {
	table, err := LoadThresholdTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholdTable(), table)

	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: 2s\n"), 0o600))
	table, err = LoadThresholdTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, table.Interval)

	_, err = LoadThresholdTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
)

// DefaultThresholdInterval is the re-evaluation interval of the default table.
const DefaultThresholdInterval = 500 * time.Millisecond

// ThresholdLevel holds the thresholds that apply while Online cores are online.
type ThresholdLevel struct {
	Online int `yaml:"online" json:"online"`

	// UpDepth: one more core is wanted when depth >= UpDepth for at least UpHold.
	UpDepth uint32        `yaml:"upDepth" json:"upDepth"`
	UpHold  time.Duration `yaml:"upHold,omitempty" json:"upHold,omitempty"`

	// DownDepth: one fewer core is wanted when depth <= DownDepth for at least DownHold.
	DownDepth uint32        `yaml:"downDepth" json:"downDepth"`
	DownHold  time.Duration `yaml:"downHold,omitempty" json:"downHold,omitempty"`
}

// ThresholdTable is the complete hysteresis configuration.
type ThresholdTable struct {
	// Interval is returned as the slack interval so the table is re-evaluated
	// even when the load does not change.
	Interval time.Duration   `yaml:"interval" json:"interval"`
	Levels   []ThresholdLevel `yaml:"levels" json:"levels"`
}

// DefaultThresholdTable returns the four-core table the engine ships with.
func DefaultThresholdTable() ThresholdTable {
	return ThresholdTable{
		Interval: DefaultThresholdInterval,
		Levels: []ThresholdLevel{
			{Online: 1, UpDepth: 190, UpHold: 140 * time.Millisecond, DownDepth: 300},
			{Online: 2, UpDepth: 190, UpHold: 140 * time.Millisecond, DownDepth: 110, DownHold: 190 * time.Millisecond},
			{Online: 3, UpDepth: 190, UpHold: 140 * time.Millisecond, DownDepth: 110, DownHold: 190 * time.Millisecond},
			{Online: 4, DownDepth: 110, DownHold: 190 * time.Millisecond},
		},
	}
}

// Validate checks for invalid table values.
func (t *ThresholdTable) Validate() error {
	var errs []error
	if t.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be > 0, got %s", t.Interval))
	}
	if len(t.Levels) == 0 {
		errs = append(errs, errors.New("at least one level is required"))
	}
	for i, l := range t.Levels {
		if l.Online != i+1 {
			errs = append(errs, fmt.Errorf("levels[%d]: online must be %d, got %d", i, i+1, l.Online))
		}
		if l.UpHold < 0 || l.DownHold < 0 {
			errs = append(errs, fmt.Errorf("levels[%d]: hold times must be >= 0", i))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Level returns the thresholds for the given online count.
func (t *ThresholdTable) Level(online int) ThresholdLevel {
	if len(t.Levels) == 0 {
		return ThresholdLevel{Online: online}
	}
	i := min(max(online, 1), len(t.Levels)) - 1
	return t.Levels[i]
}

// ParseThresholdTable decodes and validates a YAML threshold table.
// Fields left out of the document keep their defaults.
func ParseThresholdTable(data []byte) (ThresholdTable, error) {
	table := DefaultThresholdTable()
	if err := yaml.Unmarshal(data, &table); err != nil {
		return ThresholdTable{}, fmt.Errorf("failed to parse threshold table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return ThresholdTable{}, fmt.Errorf("invalid threshold table: %w", err)
	}
	ctrl.Log.V(logging.DEBUG).Info("Parsed threshold table",
		"interval", table.Interval,
		"levels", len(table.Levels))
	return table, nil
}

// LoadThresholdTable reads a threshold table from path. An empty path yields the default table.
func LoadThresholdTable(path string) (ThresholdTable, error) {
	if path == "" {
		return DefaultThresholdTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ThresholdTable{}, fmt.Errorf("failed to read threshold table %s: %w", path, err)
	}
	return ParseThresholdTable(data)
}

package collector

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// for testing purposes
var readStatFile = os.ReadFile

// ProcLoadSource reads load from procfs. The run-queue depth is the
// exponential moving average of procs_running; iowait is taken from the
// aggregate cpu line as a share of the time elapsed since the previous read.
// The kernel advances those counters once per tick, so reads that land within
// the same tick report the share measured over the last tick window.
type ProcLoadSource struct {
	path string

	mu        sync.Mutex
	depth     *EMA
	prevTotal uint64
	prevIO    uint64
	iowait    uint32
}

var _ LoadSource = (*ProcLoadSource)(nil)

// NewProcLoadSource creates a ProcLoadSource reading root/stat. alpha is the
// weight of a new sample in the depth average; 1 disables smoothing.
func NewProcLoadSource(root string, alpha float64) *ProcLoadSource {
	return &ProcLoadSource{
		path:  filepath.Join(root, "stat"),
		depth: NewEMA(alpha),
	}
}

// CurrentLoad implements LoadSource.
func (p *ProcLoadSource) CurrentLoad() (Load, error) {
	data, err := readStatFile(p.path)
	if err != nil {
		return Load{}, fmt.Errorf("failed to read %s: %w", p.path, err)
	}
	stat, err := parseStat(data)
	if err != nil {
		return Load{}, fmt.Errorf("failed to parse %s: %w", p.path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.depth.Add(float64(stat.running * core.DepthScale))

	switch {
	case p.prevTotal == 0:
		// first read only sets the baseline
	case stat.total == p.prevTotal:
		// no tick since the previous read; keep the last window's share
		return p.load(), nil
	case stat.total > p.prevTotal && stat.iowait >= p.prevIO:
		p.iowait = min(uint32((stat.iowait-p.prevIO)*100/(stat.total-p.prevTotal)), 100)
	}
	p.prevTotal, p.prevIO = stat.total, stat.iowait

	return p.load(), nil
}

func (p *ProcLoadSource) load() Load {
	return Load{
		Depth:     uint32(math.Round(p.depth.Value())),
		IOWaitPct: p.iowait,
	}
}

type procStat struct {
	running uint64
	total   uint64
	iowait  uint64
}

func parseStat(data []byte) (procStat, error) {
	var st procStat
	var haveCPU, haveRunning bool

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "cpu "):
			fields := strings.Fields(line)[1:]
			// user nice system idle iowait irq softirq steal ...
			if len(fields) < 5 {
				return st, fmt.Errorf("short cpu line %q", line)
			}
			for i, f := range fields {
				v, err := strconv.ParseUint(f, 10, 64)
				if err != nil {
					return st, fmt.Errorf("bad cpu field %q: %w", f, err)
				}
				// guest and guest_nice are already part of user and nice
				if i < 8 {
					st.total += v
				}
				if i == 4 {
					st.iowait = v
				}
			}
			haveCPU = true
		case strings.HasPrefix(line, "procs_running "):
			v, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "procs_running ")), 10, 64)
			if err != nil {
				return st, fmt.Errorf("bad procs_running %q: %w", line, err)
			}
			st.running = v
			haveRunning = true
		}
	}
	if err := sc.Err(); err != nil {
		return st, err
	}
	if !haveCPU || !haveRunning {
		return st, fmt.Errorf("missing cpu or procs_running line")
	}
	return st, nil
}

// EMA is an exponential moving average. The first sample seeds the average.
type EMA struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewEMA creates an EMA. alpha outside (0,1] is treated as 1.
func NewEMA(alpha float64) *EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &EMA{alpha: alpha}
}

// Add folds v into the average.
func (e *EMA) Add(v float64) {
	if !e.seeded {
		e.value = v
		e.seeded = true
		return
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
}

// Value returns the current average.
func (e *EMA) Value() float64 {
	return e.value
}

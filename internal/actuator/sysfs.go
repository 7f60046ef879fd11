package actuator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

func getCoreOnlinePath(root string, id core.CoreID) string {
	return filepath.Join(root, fmt.Sprintf("cpu%d", id), "online")
}

var (
	getCoreOnlinePathFunction = getCoreOnlinePath
	writeFile                 = os.WriteFile
)

// SysfsProvider drives cores through the kernel cpu hotplug interface.
// A core without an online file cannot be hotplugged and is always online.
type SysfsProvider struct {
	root     string
	possible cpuset.CPUSet

	mu     sync.RWMutex
	online cpuset.CPUSet
}

var _ TransitionProvider = (*SysfsProvider)(nil)

// NewSysfsProvider reads root/possible and the current online state.
func NewSysfsProvider(root string) (*SysfsProvider, error) {
	data, err := os.ReadFile(filepath.Join(root, "possible"))
	if err != nil {
		return nil, fmt.Errorf("failed to read possible cores: %w", err)
	}
	possible, err := cpuset.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse possible cores %q: %w", strings.TrimSpace(string(data)), err)
	}
	if !possible.Contains(int(core.PrimaryCore)) {
		return nil, fmt.Errorf("possible cores %q do not include the primary core", possible.String())
	}

	p := &SysfsProvider{root: root, possible: possible}
	if _, err := p.Online(); err != nil {
		return nil, err
	}
	return p, nil
}

// Possible implements TransitionProvider.
func (p *SysfsProvider) Possible() cpuset.CPUSet {
	return p.possible
}

// Online implements TransitionProvider.
func (p *SysfsProvider) Online() (cpuset.CPUSet, error) {
	ids := make([]int, 0, p.possible.Size())
	for _, id := range core.Cores(p.possible) {
		on, err := p.readOnline(id)
		if err != nil {
			return cpuset.CPUSet{}, err
		}
		if on {
			ids = append(ids, int(id))
		}
	}
	online := cpuset.New(ids...)

	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
	return online, nil
}

// OnlineCount implements TransitionProvider.
func (p *SysfsProvider) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online.Size()
}

// BringOnline implements TransitionProvider.
func (p *SysfsProvider) BringOnline(_ context.Context, id core.CoreID) error {
	return p.set(id, true)
}

// BringOffline implements TransitionProvider.
func (p *SysfsProvider) BringOffline(_ context.Context, id core.CoreID) error {
	if id == core.PrimaryCore {
		return ErrPrimaryCore
	}
	return p.set(id, false)
}

func (p *SysfsProvider) set(id core.CoreID, online bool) error {
	if !p.possible.Contains(int(id)) {
		return fmt.Errorf("core %d: %w", id, ErrUnknownCore)
	}
	value := "0"
	if online {
		value = "1"
	}
	if err := writeFile(getCoreOnlinePathFunction(p.root, id), []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set core %d online=%s: %w", id, value, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if online {
		p.online = p.online.Union(cpuset.New(int(id)))
	} else {
		p.online = p.online.Difference(cpuset.New(int(id)))
	}
	return nil
}

func (p *SysfsProvider) readOnline(id core.CoreID) (bool, error) {
	data, err := os.ReadFile(getCoreOnlinePathFunction(p.root, id))
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read online state of core %d: %w", id, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

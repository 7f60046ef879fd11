package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/cpuset"
	testclock "k8s.io/utils/clock/testing"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/collector"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/oracle"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

type memProvider struct {
	mu       sync.Mutex
	possible cpuset.CPUSet
	online   cpuset.CPUSet
}

func (p *memProvider) Possible() cpuset.CPUSet { return p.possible }

func (p *memProvider) Online() (cpuset.CPUSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online, nil
}

func (p *memProvider) OnlineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online.Size()
}

func (p *memProvider) BringOnline(_ context.Context, id core.CoreID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = p.online.Union(cpuset.New(int(id)))
	return nil
}

func (p *memProvider) BringOffline(_ context.Context, id core.CoreID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = p.online.Difference(cpuset.New(int(id)))
	return nil
}

// toggleOracle scales to two cores under load and records enable notifications.
type toggleOracle struct {
	possible cpuset.CPUSet

	mu      sync.Mutex
	toggles []bool
	synced  []cpuset.CPUSet
}

func (o *toggleOracle) Evaluate(_ context.Context, _ core.Event, value uint32) (core.Decision, error) {
	if value >= core.DepthScale {
		return core.Decision{Mask: core.LowestCores(o.possible, 2)}, nil
	}
	return core.Decision{Mask: core.LowestCores(o.possible, 1)}, nil
}

func (o *toggleOracle) ObserveEnable(_ context.Context, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.toggles = append(o.toggles, enabled)
	return nil
}

func (o *toggleOracle) SyncOnline(online cpuset.CPUSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.synced = append(o.synced, online)
}

func (o *toggleOracle) events() ([]bool, []cpuset.CPUSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.toggles...), append([]cpuset.CPUSet(nil), o.synced...)
}

type engineFixture struct {
	engine   *Engine
	provider *memProvider
	oracle   *toggleOracle
	clock    *testclock.FakeClock
}

func newEngineFixture(t *testing.T, depth uint32) *engineFixture {
	t.Helper()
	possible := cpuset.New(0, 1, 2, 3)
	f := &engineFixture{
		provider: &memProvider{possible: possible, online: cpuset.New(0)},
		oracle:   &toggleOracle{possible: possible},
		clock:    testclock.NewFakeClock(time.Unix(0, 0)),
	}
	e, err := NewEngine(EngineOptions{
		InstanceID: "test",
		Provider:   f.provider,
		Oracle:     f.oracle,
		OracleName: "test",
		Source: collector.LoadSourceFunc(func() (collector.Load, error) {
			return collector.Load{Depth: depth}, nil
		}),
		Config: config.DefaultEngineConfig(),
		Clock:  f.clock,
	})
	require.NoError(t, err)
	f.engine = e
	t.Cleanup(func() { _ = e.SetEnabled(context.Background(), false) })
	return f
}

func (f *engineFixture) onlineEventually(t *testing.T, want cpuset.CPUSet) {
	t.Helper()
	assert.Eventually(t, func() bool {
		f.clock.Step(tick)
		online, _ := f.provider.Online()
		return online.Equals(want)
	}, waitFor, tick)
}

func TestEngineBringsCoreOnlineUnderLoad(t *testing.T) {
	f := newEngineFixture(t, 150)

	require.NoError(t, f.engine.SetEnabled(context.Background(), true))
	f.onlineEventually(t, cpuset.New(0, 1))

	assert.Eventually(t, func() bool {
		return f.engine.Latency().UpCount == 1
	}, waitFor, tick)

	target, err := f.engine.Target()
	require.NoError(t, err)
	assert.True(t, target.Mask.Equals(cpuset.New(0, 1)))

	rec := f.engine.Cores()[1]
	assert.True(t, rec.DesiredOnline)
}

func TestEngineSetEnabledIdempotent(t *testing.T) {
	f := newEngineFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.engine.SetEnabled(ctx, true))
	require.NoError(t, f.engine.SetEnabled(ctx, true))
	assert.True(t, f.engine.Enabled())

	require.NoError(t, f.engine.SetEnabled(ctx, false))
	require.NoError(t, f.engine.SetEnabled(ctx, false))
	assert.False(t, f.engine.Enabled())

	toggles, synced := f.oracle.events()
	assert.Equal(t, []bool{true, false}, toggles)
	require.Len(t, synced, 1)
	assert.True(t, synced[0].Equals(cpuset.New(0)))

	_, err := f.engine.Target()
	assert.ErrorIs(t, err, ErrEngineDisabled)
}

func TestEngineReenableStartsFresh(t *testing.T) {
	f := newEngineFixture(t, 150)
	ctx := context.Background()

	require.NoError(t, f.engine.SetEnabled(ctx, true))
	f.onlineEventually(t, cpuset.New(0, 1))
	require.NoError(t, f.engine.SetEnabled(ctx, false))

	require.NoError(t, f.engine.SetEnabled(ctx, true))
	_, err := f.engine.Target()
	assert.ErrorIs(t, err, ErrNoTarget, "a new pipeline has no target until the first decision")
}

func TestEngineConfigSetters(t *testing.T) {
	f := newEngineFixture(t, 0)

	testCases := []struct {
		name    string
		set     func() error
		wantErr bool
	}{
		{name: "poll interval", set: func() error { return f.engine.SetPollInterval(2 * time.Millisecond) }},
		{name: "zero poll interval", set: func() error { return f.engine.SetPollInterval(0) }, wantErr: true},
		{name: "divisor", set: func() error { return f.engine.SetDivisor(50) }},
		{name: "zero divisor", set: func() error { return f.engine.SetDivisor(0) }, wantErr: true},
		{name: "iowait threshold", set: func() error { return f.engine.SetIOWaitThreshold(40) }},
		{name: "iowait threshold above 100", set: func() error { return f.engine.SetIOWaitThreshold(101) }, wantErr: true},
		{name: "min down interval", set: func() error { return f.engine.SetMinDownInterval(time.Second) }},
		{name: "negative min down interval", set: func() error { return f.engine.SetMinDownInterval(-time.Second) }, wantErr: true},
		{name: "start delay", set: func() error { return f.engine.SetStartDelay(time.Second) }},
		{name: "negative start delay", set: func() error { return f.engine.SetStartDelay(-1) }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.engine.Config()
			err := tc.set()
			if tc.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
				assert.Equal(t, before, f.engine.Config(), "a rejected value must not change the config")
				return
			}
			assert.NoError(t, err)
		})
	}

	cfg := f.engine.Config()
	assert.Equal(t, 2*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, uint32(50), cfg.Divisor)
	assert.Equal(t, uint32(40), cfg.IOWaitThreshold)
	assert.Equal(t, time.Second, cfg.MinDownInterval)
	assert.Equal(t, time.Second, cfg.StartDelay)
}

func TestEngineStartRunsUntilCancelled(t *testing.T) {
	possible := cpuset.New(0, 1)
	e, err := NewEngine(EngineOptions{
		Provider: &memProvider{possible: possible, online: possible},
		Oracle: oracle.Func(func(context.Context, core.Event, uint32) (core.Decision, error) {
			return core.Decision{}, errors.New("unused")
		}),
		Source:  collector.LoadSourceFunc(func() (collector.Load, error) { return collector.Load{}, nil }),
		Config:  config.DefaultEngineConfig(),
		Enabled: true,
		Clock:   testclock.NewFakeClock(time.Unix(0, 0)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	assert.Eventually(t, e.Enabled, waitFor, tick)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Start did not return")
	}
	assert.False(t, e.Enabled())
}

func TestNewEngineRejects(t *testing.T) {
	_, err := NewEngine(EngineOptions{})
	assert.Error(t, err)

	bad := config.DefaultEngineConfig()
	bad.Divisor = 0
	_, err = NewEngine(EngineOptions{
		Provider: &memProvider{possible: cpuset.New(0), online: cpuset.New(0)},
		Oracle:   oracle.Func(nil),
		Source:   collector.LoadSourceFunc(nil),
		Config:   bad,
	})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

package collector

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/common"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/optimizer"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// SampleState is the sampler state shared by every core's timer.
type SampleState struct {
	LastReported uint32
	NextDeadline time.Time
	// StartAt is the end of the start delay.
	StartAt time.Time
}

// SamplerConfig carries the collaborators of a Sampler.
type SamplerConfig struct {
	Clock    clock.WithDelayedExecution
	Mailbox  *optimizer.Mailbox
	Slack    *optimizer.SlackTimer
	Source   LoadSource
	Config   *common.GlobalConfig
	Targets  TargetView
	Online   OnlineCounter
	Possible cpuset.CPUSet
	Observer SampleObserver
	Logger   logr.Logger
}

type coreTimer struct {
	timer clock.Timer
	gen   uint64
}

// Sampler takes load samples on per-core timers and forwards significant ones.
type Sampler struct {
	clock    clock.WithDelayedExecution
	mailbox  *optimizer.Mailbox
	slack    *optimizer.SlackTimer
	source   LoadSource
	cfg      *common.GlobalConfig
	targets  TargetView
	online   OnlineCounter
	possible cpuset.CPUSet
	maxDepth uint32
	observer SampleObserver
	log      logr.Logger

	// guarded by the mailbox lock
	state     SampleState
	errorLogs rate.Sometimes

	timersMu sync.Mutex
	timers   map[core.CoreID]*coreTimer
	gen      uint64
	running  bool
}

// NewSampler creates a stopped Sampler.
func NewSampler(c SamplerConfig) *Sampler {
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	log := c.Logger
	if log.GetSink() == nil {
		log = ctrl.Log.WithName("sampler")
	}
	return &Sampler{
		clock:     c.Clock,
		mailbox:   c.Mailbox,
		slack:     c.Slack,
		source:    c.Source,
		cfg:       c.Config,
		targets:   c.Targets,
		online:    c.Online,
		possible:  c.Possible,
		maxDepth:  uint32(c.Possible.Size() * core.DepthScale),
		observer:  c.Observer,
		log:       log,
		errorLogs: rate.Sometimes{First: 1, Interval: 10 * time.Second},
		timers:    make(map[core.CoreID]*coreTimer, c.Possible.Size()),
	}
}

// Start resets the sample state and starts a timer for every core in online.
func (s *Sampler) Start(online cpuset.CPUSet) {
	now := s.clock.Now()
	cfg := s.cfg.Get()
	s.mailbox.Locked(func(*optimizer.Slot) {
		s.state = SampleState{
			NextDeadline: now,
			StartAt:      now.Add(cfg.StartDelay),
		}
	})

	s.timersMu.Lock()
	s.running = true
	s.timersMu.Unlock()

	for _, id := range core.Cores(online.Intersection(s.possible)) {
		s.CoreOnline(id)
	}
}

// Stop stops every core timer. A callback that is already running completes
// but does not rearm.
func (s *Sampler) Stop() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	s.running = false
	for id, ct := range s.timers {
		ct.timer.Stop()
		delete(s.timers, id)
	}
}

// CoreOnline starts the timer of id. It is a no-op for a running timer or a
// stopped sampler.
func (s *Sampler) CoreOnline(id core.CoreID) {
	if !s.possible.Contains(int(id)) {
		return
	}
	deadline := s.deadline()

	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if !s.running {
		return
	}
	if _, ok := s.timers[id]; ok {
		return
	}
	s.gen++
	ct := &coreTimer{gen: s.gen}
	ct.timer = s.clock.AfterFunc(s.until(deadline), func() { s.fire(id, ct.gen) })
	s.timers[id] = ct
}

// CoreOffline stops the timer of id.
func (s *Sampler) CoreOffline(id core.CoreID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if ct, ok := s.timers[id]; ok {
		ct.timer.Stop()
		delete(s.timers, id)
	}
}

// ActiveTimers returns the cores whose timer is running.
func (s *Sampler) ActiveTimers() cpuset.CPUSet {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	ids := make([]int, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, int(id))
	}
	return cpuset.New(ids...)
}

// State returns a copy of the sample state.
func (s *Sampler) State() SampleState {
	var st SampleState
	s.mailbox.Locked(func(*optimizer.Slot) { st = s.state })
	return st
}

func (s *Sampler) fire(id core.CoreID, gen uint64) {
	next := s.sample(id)

	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	ct, ok := s.timers[id]
	if !s.running || !ok || ct.gen != gen {
		return
	}
	ct.timer = s.clock.AfterFunc(s.until(next), func() { s.fire(id, gen) })
}

// sample runs one sampling step for the timer of id and returns the deadline
// the timer should be aimed at next.
func (s *Sampler) sample(id core.CoreID) time.Time {
	now := s.clock.Now()
	var next time.Time

	s.mailbox.Locked(func(slot *optimizer.Slot) {
		if now.Before(s.state.NextDeadline) {
			next = s.state.NextDeadline
			return
		}
		cfg := s.cfg.Get()
		s.state.NextDeadline = now.Add(cfg.PollInterval)
		next = s.state.NextDeadline

		load, err := s.source.CurrentLoad()
		if err != nil {
			s.errorLogs.Do(func() {
				s.log.Error(err, "Failed to read load, skipping sample", "core", id)
			})
			return
		}

		depth := min(load.Depth, s.maxDepth)
		if cfg.IOWaitThreshold > 0 && load.IOWaitPct > cfg.IOWaitThreshold && depth < s.state.LastReported {
			depth = s.state.LastReported
		}

		forward := !now.Before(s.state.StartAt) && s.significant(depth, cfg.Divisor)
		if forward {
			s.slack.Cancel()
			slot.Post(core.Request{Event: core.EventRunQueueUpdate, Depth: depth})
			s.state.LastReported = depth
		}
		if s.observer != nil {
			s.observer.ObserveSample(depth, forward)
		}
		s.log.V(logging.TRACE).Info("Sample",
			"core", id,
			"depth", depth,
			"iowait", load.IOWaitPct,
			"forwarded", forward)
	})
	return next
}

// significant must be called with the mailbox lock held.
func (s *Sampler) significant(depth, divisor uint32) bool {
	if depth/divisor != s.state.LastReported/divisor {
		return true
	}
	return s.online.OnlineCount() != s.targets.WantOnline() && !s.targets.InFlight()
}

func (s *Sampler) deadline() time.Time {
	var d time.Time
	s.mailbox.Locked(func(*optimizer.Slot) { d = s.state.NextDeadline })
	return d
}

func (s *Sampler) until(deadline time.Time) time.Duration {
	return max(deadline.Sub(s.clock.Now()), 0)
}

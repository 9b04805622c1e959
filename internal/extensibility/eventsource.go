package extensibility

import (
	"sync"
	"time"

	"github.com/comalice/chartkit/internal/primitives"
)

// ChannelEventSource is an EventSource implementation backed by a Go channel.
// Provides a simple way to feed external events into Machine.Run.
type ChannelEventSource struct {
	ch chan primitives.Event
}

// Events returns the receive-only channel for events.
func (s *ChannelEventSource) Events() <-chan primitives.Event {
	return s.ch
}

// NewChannelEventSource creates a new ChannelEventSource with the given channel.
// The channel should be buffered if backpressure handling is needed.
func NewChannelEventSource(ch chan primitives.Event) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

// TimerEventSource generates periodic events using time.Ticker.
// Useful for timeout/heartbeat statecharts.
type TimerEventSource struct {
	ch        chan primitives.Event
	eventType string
	data      any
	ticker    *time.Ticker
	stop      chan struct{}
	once      sync.Once
}

// NewTimerEventSource creates a TimerEventSource that emits events every d duration.
func NewTimerEventSource(eventType string, data any, d time.Duration) *TimerEventSource {
	ch := make(chan primitives.Event, 10)
	t := &TimerEventSource{
		ch:        ch,
		eventType: eventType,
		data:      data,
		ticker:    time.NewTicker(d),
		stop:      make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TimerEventSource) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- primitives.NewEvent(t.eventType, t.data):
			default:
				// drop if full
			}
		case <-t.stop:
			t.ticker.Stop()
			close(t.ch)
			return
		}
	}
}

// Events returns the event channel.
func (t *TimerEventSource) Events() <-chan primitives.Event {
	return t.ch
}

// Stop stops the ticker and closes the channel. Safe to call twice.
func (t *TimerEventSource) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Scheduler delivers delayed events ("after 5s send TIMEOUT"). Each pending
// event has a key; scheduling a key again replaces the pending event, which
// is how state timeouts are reset. It is an EventSource for Machine.Run.
type Scheduler struct {
	mu      sync.Mutex
	ch      chan primitives.Event
	timers  map[string]*time.Timer
	closed  bool
	dropped int
}

// NewScheduler creates a Scheduler whose channel holds buffer events.
func NewScheduler(buffer int) *Scheduler {
	return &Scheduler{
		ch:     make(chan primitives.Event, buffer),
		timers: make(map[string]*time.Timer),
	}
}

// After schedules event to be delivered after d under key.
func (s *Scheduler) After(key string, d time.Duration, event primitives.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.timers[key] != timer {
			return
		}
		delete(s.timers, key)
		select {
		case s.ch <- event:
		default:
			s.dropped++
		}
	})
	s.timers[key] = timer
}

// Cancel drops the pending event for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

// Pending returns the number of scheduled, undelivered events.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Dropped returns how many events were discarded because the channel was full.
func (s *Scheduler) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Scheduler) Events() <-chan primitives.Event {
	return s.ch
}

// Close cancels every pending event and closes the channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	close(s.ch)
}

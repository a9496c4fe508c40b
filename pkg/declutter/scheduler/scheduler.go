// Package scheduler runs named recurring alarms.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
)

// SweepAlarm is the name of the periodic sweep alarm.
const SweepAlarm = "DECLUTTER_SWEEP"

// ErrInvalidPeriod is returned when an alarm is armed with a non-positive period.
var ErrInvalidPeriod = errors.New("alarm period must be positive")

// FireFunc is called, on its own goroutine, each time an alarm goes off.
type FireFunc func(ctx context.Context, name string)

// Info describes an armed alarm.
type Info struct {
	Name   string
	Period time.Duration
	Next   time.Time
}

type alarm struct {
	period time.Duration
	next   time.Time
	cancel context.CancelFunc
}

// Scheduler keeps a set of named alarms. Alarms armed before Run are
// recorded and start ticking once Run is called.
type Scheduler struct {
	mu     sync.Mutex
	alarms map[string]*alarm
	ctx    context.Context
	fire   FireFunc
	wg     sync.WaitGroup
	logger *logging.Logger
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		alarms: make(map[string]*alarm),
		logger: logging.Get("daemon"),
	}
}

// Arm creates or replaces the alarm called name. The first firing happens
// one period from now.
func (s *Scheduler) Arm(name string, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s got %v", ErrInvalidPeriod, name, period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.alarms[name]; ok && old.cancel != nil {
		old.cancel()
	}
	a := &alarm{period: period, next: time.Now().Add(period)}
	s.alarms[name] = a
	if s.ctx != nil {
		s.start(name, a)
	}

	s.logger.Info("alarm armed", "name", name, "period", period)
	return nil
}

// Clear removes the alarm called name. Clearing an unknown name is a no-op.
func (s *Scheduler) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.alarms[name]; ok {
		if a.cancel != nil {
			a.cancel()
		}
		delete(s.alarms, name)
	}
}

// Get returns the alarm called name.
func (s *Scheduler) Get(name string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[name]
	if !ok {
		return Info{}, false
	}
	return Info{Name: name, Period: a.period, Next: a.next}, true
}

// Run starts every armed alarm and blocks until ctx is done. In-flight
// fire calls receive ctx and are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context, fire FireFunc) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.ctx = ctx
	s.fire = fire
	for name, a := range s.alarms {
		s.start(name, a)
	}
	s.mu.Unlock()

	<-ctx.Done()
	s.wg.Wait()
	return nil
}

// start launches the ticker loop for a. Must be called with s.mu held.
func (s *Scheduler) start(name string, a *alarm) {
	loopCtx, cancel := context.WithCancel(s.ctx)
	a.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx, name, a)
}

func (s *Scheduler) loop(ctx context.Context, name string, a *alarm) {
	defer s.wg.Done()

	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			a.next = now.Add(a.period)
			s.mu.Unlock()

			s.logger.Debug("alarm fired", "name", name)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.fire(s.ctx, name)
			}()
		}
	}
}

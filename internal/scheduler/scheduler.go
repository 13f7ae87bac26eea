// Package scheduler turns a cron expression into run triggers.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/mailbox"
	"github.com/raoulx24/cl-retention/internal/worker"
)

// Scheduler puts a worker.Trigger into the mailbox on every cron tick.
// A tick that fires while a previous trigger is still pending replaces it.
type Scheduler struct {
	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
	spec  string

	log logging.Logger
	mb  *mailbox.Mailbox[worker.Trigger]

	now func() time.Time
}

// New parses spec, a standard five-field expression or a descriptor such
// as "@daily".
func New(spec string, log logging.Logger, mb *mailbox.Mailbox[worker.Trigger]) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		log:  log,
		mb:   mb,
		now:  time.Now,
	}
	if err := s.schedule(spec); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) schedule(spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(s.tick))
	s.spec = spec
	return nil
}

func (s *Scheduler) tick() {
	if s.mb.Put(worker.Trigger{Reason: "schedule", At: s.now()}) {
		s.log.Warn("previous run still pending, trigger replaced")
	}
	s.log.Debug("scheduled run triggered")
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	s.log.Info("scheduler started", "schedule", s.spec, "next", s.next())
}

// Stop halts the scheduler and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Debug("scheduler stopped")
}

// Reschedule replaces the schedule. A bad spec keeps the current one.
func (s *Scheduler) Reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.spec {
		return nil
	}
	if err := s.schedule(spec); err != nil {
		return err
	}
	s.log.Info("schedule changed", "schedule", spec, "next", s.next())
	return nil
}

// Next returns the next planned trigger, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next()
}

func (s *Scheduler) next() time.Time {
	return s.cron.Entry(s.entry).Next
}

package necs

import (
	"sync/atomic"
	"time"
)

// Scheduler drives the runtime's cooperative scheduling model: a single
// goroutine ticks periodic component updates and executes deferred tasks
// popped off the runtime's task queue. All core state mutations happen
// either synchronously in the caller or on this goroutine, so deferred work
// for one runtime never runs concurrently with itself.
type Scheduler struct {
	rt *Runtime

	tickRate time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// tickNumber counts completed ticks.
	tickNumber atomic.Uint64
}

func newScheduler(rt *Runtime, tickRate time.Duration) *Scheduler {
	if tickRate <= 0 {
		tickRate = 50 * time.Millisecond // 20 TPS
	}
	return &Scheduler{
		rt:       rt,
		tickRate: tickRate,
	}
}

// Start begins the tick loop. Starting an already-running scheduler is a
// no-op; a stopped scheduler may be started again.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return
	}
	// Fresh channels per run, so a restart never observes the previous
	// run's closed ones.
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.tickLoop()
}

// Stop shuts the tick loop down and waits for it to exit.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

// tickLoop is the scheduler's main loop. It wakes on the tick interval and
// whenever an immediate task is pushed onto the queue.
func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return

		case now := <-ticker.C:
			s.tick(now)

		case <-s.rt.queue.Notify():
			s.runDueTasks(time.Now())
		}
	}
}

// tick executes one scheduler tick: periodic component updates first, then
// all due deferred tasks.
func (s *Scheduler) tick(now time.Time) {
	s.tickNumber.Add(1)
	s.runUpdates(now)
	s.runDueTasks(now)
}

// runUpdates drives every live entity's components that declared an update
// rate, using drift-free per-slot timing.
func (s *Scheduler) runUpdates(now time.Time) {
	for _, e := range s.rt.Entities() {
		for _, slot := range e.updateSlots() {
			if !slot.shouldRun(now) {
				continue
			}
			dt := now.Sub(slot.lastRun)
			slot := slot
			s.rt.safely("component update", slot.name, func() {
				slot.updater.Update(dt)
			})
			slot.markRun(now)
		}
	}
}

// runDueTasks pops and executes every due task. Task failures are isolated:
// a panicking task is logged and the remaining tasks still run.
func (s *Scheduler) runDueTasks(now time.Time) {
	due := s.rt.queue.PopDue(now)
	for _, task := range due {
		// The entity record is released whether the task runs or is
		// discarded below.
		if task.entity != nil {
			task.entity.removeTask(task)
		}
		if task.cancelled.Load() {
			continue
		}
		if task.entity != nil && task.entity.destroyed.Load() {
			continue
		}
		s.rt.safely("task", "", task.fn)
	}
}

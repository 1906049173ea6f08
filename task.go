package necs

import (
	"sync"
	"sync/atomic"
	"time"
)

// scheduledTask is a unit of deferred work: a subscriber notification, a
// replication push, a state timer expiry or host-scheduled work.
type scheduledTask struct {
	// runAt is the time the task becomes due.
	runAt time.Time

	// seq orders tasks that share the same due time, so deferred work
	// enqueued by a single mutation stream runs in enqueue order.
	seq uint64

	// entity is the owning entity, or nil for runtime-global tasks. Tasks
	// owned by a destroyed entity never run.
	entity *Entity

	// fn is the work itself.
	fn func()

	// cancelled indicates the task must never run.
	cancelled atomic.Bool

	// index is the heap index for efficient removal.
	index int
}

// due reports whether the task should run at or before now.
func (t *scheduledTask) due(now time.Time) bool {
	return !t.runAt.After(now)
}

// before orders tasks by due time, then by enqueue sequence.
func (t *scheduledTask) before(other *scheduledTask) bool {
	if t.runAt.Equal(other.runAt) {
		return t.seq < other.seq
	}
	return t.runAt.Before(other.runAt)
}

// taskQueue is a priority queue for scheduled tasks. It uses a binary heap
// for O(log n) insertion and removal.
type taskQueue struct {
	mu    sync.Mutex
	heap  []*scheduledTask
	seq   uint64
	notif chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		heap:  make([]*scheduledTask, 0, 64),
		notif: make(chan struct{}, 1),
	}
}

// Push adds a task to the queue with periodic cleanup of cancelled entries
// to prevent memory leaks, and wakes the scheduler.
func (q *taskQueue) Push(task *scheduledTask) {
	q.mu.Lock()

	if len(q.heap) > 100 && len(q.heap)%100 == 0 {
		q.compact()
	}

	q.seq++
	task.seq = q.seq
	task.index = len(q.heap)
	q.heap = append(q.heap, task)
	q.up(task.index)
	q.mu.Unlock()

	select {
	case q.notif <- struct{}{}:
	default:
	}
}

// PopDue removes and returns all tasks that are due, skipping cancelled
// ones. Triggers compaction when many cancelled tasks are encountered.
func (q *taskQueue) PopDue(now time.Time) []*scheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*scheduledTask
	cancelledCount := 0

	for len(q.heap) > 0 && q.heap[0].due(now) {
		task := q.pop()
		if !task.cancelled.Load() {
			due = append(due, task)
		} else {
			cancelledCount++
		}
	}

	if cancelledCount > 50 && len(q.heap) > 0 {
		q.compact()
	}

	return due
}

// Len returns the number of tasks in the queue, cancelled included.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Clear removes all tasks from the queue.
func (q *taskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = q.heap[:0]
}

// Notify returns the wake-up channel.
func (q *taskQueue) Notify() <-chan struct{} {
	return q.notif
}

// compact removes cancelled tasks and rebuilds the heap property. Caller
// must hold the lock.
func (q *taskQueue) compact() {
	write := 0
	for read := 0; read < len(q.heap); read++ {
		if !q.heap[read].cancelled.Load() {
			q.heap[write] = q.heap[read]
			q.heap[write].index = write
			write++
		}
	}

	for i := write; i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = q.heap[:write]

	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.down(i, len(q.heap))
	}
}

// pop removes and returns the minimum task. Caller must hold the lock.
func (q *taskQueue) pop() *scheduledTask {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	task := q.heap[n]
	q.heap[n] = nil // Allow GC
	q.heap = q.heap[:n]
	task.index = -1
	return task
}

func (q *taskQueue) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !q.heap[i].before(q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *taskQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right].before(q.heap[left]) {
			j = right
		}
		if !q.heap[j].before(q.heap[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
}

func (q *taskQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}

// TaskHandle allows cancelling a scheduled task. A cancelled task never
// runs; cancelling an already-executed or already-cancelled task is a no-op.
type TaskHandle struct {
	task *scheduledTask
}

// Cancel cancels the scheduled task and releases it from its owning entity,
// so long-lived entities that churn timers do not accumulate dead records.
func (h *TaskHandle) Cancel() {
	if h == nil || h.task == nil {
		return
	}
	if !h.task.cancelled.Swap(true) && h.task.entity != nil {
		h.task.entity.removeTask(h.task)
	}
}

// Cancelled reports whether the task has been cancelled.
func (h *TaskHandle) Cancelled() bool {
	return h != nil && h.task != nil && h.task.cancelled.Load()
}

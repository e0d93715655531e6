package cooldown

import (
	"container/heap"
	"time"
)

// TimerID identifies a scheduled task. The zero value names nothing.
type TimerID uint64

type task struct {
	id       TimerID
	owner    string
	deadline time.Duration
	interval time.Duration
	seq      uint64
	fn       func()
	index    int
	dead     bool
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Timers is a cooperative scheduler driven by Advance. Every task belongs to
// an owner key so that everything an entity or player scheduled can be
// dropped in one call. Timers is not safe for concurrent use; it lives on
// the simulation goroutine.
type Timers struct {
	now     time.Duration
	nextID  TimerID
	seq     uint64
	queue   taskQueue
	tasks   map[TimerID]*task
	byOwner map[string]map[TimerID]struct{}
}

// NewTimers constructs an empty scheduler at time zero.
func NewTimers() *Timers {
	return &Timers{
		tasks:   make(map[TimerID]*task),
		byOwner: make(map[string]map[TimerID]struct{}),
	}
}

// Now reports the scheduler's clock.
func (t *Timers) Now() time.Duration {
	return t.now
}

// After runs fn once, delay from now.
func (t *Timers) After(owner string, delay time.Duration, fn func()) TimerID {
	return t.schedule(owner, max(delay, 0), 0, fn)
}

// Every runs fn each interval until cancelled. Non-positive intervals are
// raised to one nanosecond so Advance always terminates.
func (t *Timers) Every(owner string, interval time.Duration, fn func()) TimerID {
	interval = max(interval, time.Nanosecond)
	return t.schedule(owner, interval, interval, fn)
}

func (t *Timers) schedule(owner string, delay, interval time.Duration, fn func()) TimerID {
	if fn == nil {
		return 0
	}
	t.nextID++
	t.seq++
	tk := &task{
		id:       t.nextID,
		owner:    owner,
		deadline: t.now + delay,
		interval: interval,
		seq:      t.seq,
		fn:       fn,
	}
	t.tasks[tk.id] = tk
	owned := t.byOwner[owner]
	if owned == nil {
		owned = make(map[TimerID]struct{})
		t.byOwner[owner] = owned
	}
	owned[tk.id] = struct{}{}
	heap.Push(&t.queue, tk)
	return tk.id
}

// Cancel drops one task. It reports whether the task was still pending.
func (t *Timers) Cancel(id TimerID) bool {
	tk, ok := t.tasks[id]
	if !ok {
		return false
	}
	t.forget(tk)
	if tk.index >= 0 {
		heap.Remove(&t.queue, tk.index)
	}
	return true
}

// CancelAllFor drops every pending task of owner and returns how many were
// dropped. A task cancelled this way never runs, even if it was due in the
// Advance that is currently executing.
func (t *Timers) CancelAllFor(owner string) int {
	owned := t.byOwner[owner]
	if len(owned) == 0 {
		return 0
	}
	ids := make([]TimerID, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	cancelled := 0
	for _, id := range ids {
		if t.Cancel(id) {
			cancelled++
		}
	}
	return cancelled
}

// Pending counts the live tasks of owner.
func (t *Timers) Pending(owner string) int {
	return len(t.byOwner[owner])
}

// Len counts every live task.
func (t *Timers) Len() int {
	return len(t.tasks)
}

func (t *Timers) forget(tk *task) {
	tk.dead = true
	delete(t.tasks, tk.id)
	if owned := t.byOwner[tk.owner]; owned != nil {
		delete(owned, tk.id)
		if len(owned) == 0 {
			delete(t.byOwner, tk.owner)
		}
	}
}

// Advance moves the clock forward by dt and runs every task whose deadline
// falls inside the window, in deadline order. Callbacks may schedule and
// cancel freely. It returns how many callbacks ran.
func (t *Timers) Advance(dt time.Duration) int {
	if dt < 0 {
		dt = 0
	}
	target := t.now + dt
	fired := 0
	for len(t.queue) > 0 {
		next := t.queue[0]
		if next.deadline > target {
			break
		}
		heap.Pop(&t.queue)
		if next.dead {
			continue
		}
		t.now = next.deadline
		if next.interval > 0 {
			next.deadline += next.interval
			t.seq++
			next.seq = t.seq
			heap.Push(&t.queue, next)
		} else {
			t.forget(next)
		}
		next.fn()
		fired++
	}
	t.now = target
	return fired
}

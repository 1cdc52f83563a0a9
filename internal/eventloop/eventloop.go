package eventloop

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cryguy/offscreen/internal/core"
)

// LoadResult holds the outcome of a document load performed off-thread.
// The loader goroutine decodes the body before sending, so delivery on the
// owning goroutine only hands over bytes.
type LoadResult struct {
	Status   int
	MimeType string
	Charset  string
	Body     []byte
	FinalURL string
	Code     core.ErrorCode
	Err      error
}

// PendingLoad is an in-flight load whose result is delivered on the loop's
// goroutine once it arrives.
type PendingLoad struct {
	ResultCh <-chan LoadResult
	Deliver  func(LoadResult)
}

// Task is a unit of work posted to a loop from any goroutine.
type Task func()

// timerEntry is a pending setTimeout or setInterval. The callback itself lives
// in globalThis.__timerCallbacks[id]; Go only tracks scheduling.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout
	id       int
	cleared  bool
}

// EventLoop is a poll-driven work queue owned by one goroutine. Other
// goroutines Post tasks and register pending loads; the owner calls RunOnce,
// which never blocks.
type EventLoop struct {
	mu           sync.Mutex
	tasks        []Task
	timers       map[int]*timerEntry
	nextID       int
	pendingLoads []*PendingLoad
	wake         chan struct{}

	// OnPanic, when set, receives the value of a task that panicked and the
	// remaining tasks keep running. Without it the panic propagates.
	OnPanic func(any)
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
		wake:   make(chan struct{}, 1),
	}
}

// Post queues a task. Safe from any goroutine.
func (el *EventLoop) Post(t Task) {
	el.mu.Lock()
	el.tasks = append(el.tasks, t)
	el.mu.Unlock()
	el.signal()
}

// Wake is signaled whenever work is posted. Goroutines that own a loop block
// on it between RunOnce calls.
func (el *EventLoop) Wake() <-chan struct{} {
	return el.wake
}

func (el *EventLoop) signal() {
	select {
	case el.wake <- struct{}{}:
	default:
	}
}

// RunTasks runs up to max queued tasks (all of them when max <= 0) and
// returns how many ran. Tasks posted while running wait for the next call.
func (el *EventLoop) RunTasks(max int) int {
	el.mu.Lock()
	n := len(el.tasks)
	if max > 0 && n > max {
		n = max
	}
	batch := make([]Task, n)
	copy(batch, el.tasks[:n])
	el.tasks = el.tasks[n:]
	more := len(el.tasks) > 0
	el.mu.Unlock()

	for _, t := range batch {
		el.run(t)
	}
	if more {
		el.signal()
	}
	return n
}

func (el *EventLoop) run(t Task) {
	if el.OnPanic != nil {
		defer func() {
			if p := recover(); p != nil {
				el.OnPanic(p)
			}
		}()
	}
	t()
}

// RegisterTimer creates a timer entry and returns its ID.
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{
		deadline: time.Now().Add(delay),
		id:       id,
	}
	if isInterval {
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond // minimum interval
		}
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if t, ok := el.timers[id]; ok {
		t.cleared = true
		delete(el.timers, id)
	}
}

// NextTimer reports the earliest timer deadline.
func (el *EventLoop) NextTimer() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range el.timers {
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// AddPendingLoad registers a load whose result will be delivered by a later
// DrainPendingLoads.
func (el *EventLoop) AddPendingLoad(pl *PendingLoad) {
	el.mu.Lock()
	el.pendingLoads = append(el.pendingLoads, pl)
	el.mu.Unlock()
}

// CancelPendingLoads drops every registered load without delivering it.
func (el *EventLoop) CancelPendingLoads() {
	el.mu.Lock()
	el.pendingLoads = nil
	el.mu.Unlock()
}

// DrainPendingLoads does non-blocking reads on all pending load channels and
// delivers completed ones. Returns true if any load was delivered.
func (el *EventLoop) DrainPendingLoads() bool {
	el.mu.Lock()
	if len(el.pendingLoads) == 0 {
		el.mu.Unlock()
		return false
	}
	pending := el.pendingLoads
	el.pendingLoads = nil
	el.mu.Unlock()

	var remaining []*PendingLoad
	didWork := false
	for _, pl := range pending {
		select {
		case result := <-pl.ResultCh:
			pl.Deliver(result)
			didWork = true
		default:
			remaining = append(remaining, pl)
		}
	}

	el.mu.Lock()
	// Deliveries may have registered new loads.
	el.pendingLoads = append(remaining, el.pendingLoads...)
	el.mu.Unlock()
	return didWork
}

// fireTimer invokes the JS-side callback for a timer.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	_ = rt.Eval(js)
}

// RunDueTimers fires every timer whose deadline has passed at now. Intervals
// are rescheduled; each fires at most once per call.
func (el *EventLoop) RunDueTimers(rt core.JSRuntime, now time.Time) int {
	el.mu.Lock()
	var due []int
	for _, t := range el.timers {
		if t.cleared || t.deadline.After(now) {
			continue
		}
		due = append(due, t.id)
	}
	el.mu.Unlock()
	if len(due) == 0 {
		return 0
	}
	slices.Sort(due)

	fired := 0
	for _, id := range due {
		el.mu.Lock()
		t, ok := el.timers[id]
		if !ok || t.cleared {
			el.mu.Unlock()
			continue
		}
		if t.interval > 0 {
			t.deadline = now.Add(t.interval)
		} else {
			delete(el.timers, id)
		}
		el.mu.Unlock()

		el.fireTimer(rt, id)
		rt.RunMicrotasks()
		fired++
	}
	return fired
}

// RunOnce delivers completed loads, runs up to maxTasks tasks and fires due
// timers against the runtime current returns. current is called after the
// tasks ran, since a task may replace the runtime; a nil current or a nil
// result skips timers. It never waits. Reports whether anything ran.
func (el *EventLoop) RunOnce(current func() core.JSRuntime, maxTasks int) bool {
	did := el.DrainPendingLoads()
	if el.RunTasks(maxTasks) > 0 {
		did = true
	}
	if current == nil {
		return did
	}
	if rt := current(); rt != nil {
		if el.RunDueTimers(rt, time.Now()) > 0 {
			did = true
		}
	}
	return did
}

// HasPending returns true if there are queued tasks, active timers or
// pending loads.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.tasks) > 0 || len(el.timers) > 0 || len(el.pendingLoads) > 0
}

// Reset clears timers and pending loads. Queued tasks are kept. Called when a
// document is replaced.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
	el.pendingLoads = nil
}

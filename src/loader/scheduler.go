// Package loader discovers and loads build files on demand: a worker pool
// parses files while the main thread evaluates them, serialising all access
// to scopes and the target graph. The scheduler here owns the bookkeeping:
// the work counter that detects completion, the failure latch, and the lists
// that feed build.ninja.d.
package loader

import (
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/please-build/gen/src/cli/logging"
	"github.com/please-build/gen/src/core"
)

var log = logging.Log

// A taskQueue is an unbounded FIFO queue of tasks with a blocking Pop.
// Posts from one goroutine are consumed in order.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Post enqueues a task. Posting to a closed queue drops the task; by then
// nobody would run its result anyway.
func (q *taskQueue) Post(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.tasks = append(q.tasks, f)
		q.cond.Signal()
	}
}

// Pop blocks until a task is available or the queue is closed.
func (q *taskQueue) Pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	f := q.tasks[0]
	q.tasks = q.tasks[1:]
	return f, true
}

// Close wakes all consumers and makes further Pops return false immediately.
// Pending tasks are dropped; anything that mattered has already run by the
// time the queue closes.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// A Scheduler coordinates the loading run: it owns the main-thread event
// loop, the worker pool, and the shared state they report into.
type Scheduler struct {
	mainQueue   *taskQueue
	workerQueue *taskQueue
	numThreads  int

	// Outstanding units of work; when this reaches zero the main loop quits.
	workCount int64

	// One mutex guards the small shared state below; operations under it are
	// all short. The queues synchronise themselves separately so nothing here
	// is held across a wait.
	mu       sync.Mutex
	failed   bool
	firstErr *core.Err

	genDeps   []string
	genDepSet map[string]bool

	unknownGeneratedInputs map[string]*core.Target
}

// NewScheduler creates a scheduler running the given number of worker threads.
func NewScheduler(numThreads int) *Scheduler {
	if numThreads < 1 {
		numThreads = 1
	}
	return &Scheduler{
		mainQueue:              newTaskQueue(),
		workerQueue:            newTaskQueue(),
		numThreads:             numThreads,
		genDepSet:              map[string]bool{},
		unknownGeneratedInputs: map[string]*core.Target{},
	}
}

// Run drives the event loop until the work frontier empties (or the first
// fatal error), then joins the workers. It returns the first error raised,
// or nil on success.
func (s *Scheduler) Run() *core.Err {
	var workers errgroup.Group
	for i := 0; i < s.numThreads; i++ {
		workers.Go(func() error {
			for {
				task, ok := s.workerQueue.Pop()
				if !ok {
					return nil
				}
				task()
			}
		})
	}
	for {
		task, ok := s.mainQueue.Pop()
		if !ok {
			break
		}
		task()
	}
	// No locks are held here; the workers drain freely and exit.
	s.workerQueue.Close()
	if err := workers.Wait(); err != nil {
		log.Fatalf("worker pool failed: %s", err)
	}
	return s.Err()
}

// PostTask enqueues a task for the main thread. Tasks post FIFO and run to
// completion; the gap between them is the only suspension point.
func (s *Scheduler) PostTask(f func()) {
	s.mainQueue.Post(f)
}

// PostWorkerTask enqueues a CPU-bound task (parsing) for the worker pool.
// Workers must not touch scopes, values or the graph; they hand results back
// with PostTask.
func (s *Scheduler) PostWorkerTask(f func()) {
	s.workerQueue.Post(f)
}

// IncWorkCount records one more outstanding unit of work.
func (s *Scheduler) IncWorkCount() {
	atomic.AddInt64(&s.workCount, 1)
}

// DecWorkCount retires one unit of work; on reaching zero a quit is posted
// to the main loop. The check re-runs on the main thread so a task that
// schedules more work before returning keeps the loop alive.
func (s *Scheduler) DecWorkCount() {
	if atomic.AddInt64(&s.workCount, -1) == 0 {
		s.PostTask(func() {
			if atomic.LoadInt64(&s.workCount) == 0 {
				s.mainQueue.Close()
			}
		})
	}
}

// FailWithError latches the first fatal error and posts a quit. Later calls
// are dropped; the user gets one well-formed report, not a cascade.
func (s *Scheduler) FailWithError(err *core.Err) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.firstErr = err
	s.mu.Unlock()
	s.mainQueue.Close()
}

// Failed reports whether the failure latch is set; in-flight work uses this
// to discard its results early.
func (s *Scheduler) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Err returns the latched error, if any.
func (s *Scheduler) Err() *core.Err {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// AddGenDep records a file whose content influenced the output; the set is
// written to build.ninja.d so any change re-triggers generation.
func (s *Scheduler) AddGenDep(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.genDepSet[path] {
		s.genDepSet[path] = true
		s.genDeps = append(s.genDeps, path)
	}
}

// GenDeps returns the recorded generator dependencies, sorted.
func (s *Scheduler) GenDeps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	deps := append([]string{}, s.genDeps...)
	sort.Strings(deps)
	return deps
}

// AddUnknownGeneratedInput records a reference to a file under the build
// directory whose generating target wasn't known at commit time. The
// references are validated once the whole graph exists.
func (s *Scheduler) AddUnknownGeneratedInput(file string, t *core.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.unknownGeneratedInputs[file]; !present {
		s.unknownGeneratedInputs[file] = t
	}
}

// UnknownGeneratedInputs returns the recorded references.
func (s *Scheduler) UnknownGeneratedInputs() map[string]*core.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string]*core.Target, len(s.unknownGeneratedInputs))
	for file, t := range s.unknownGeneratedInputs {
		ret[file] = t
	}
	return ret
}

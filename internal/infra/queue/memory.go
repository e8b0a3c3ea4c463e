package queue

import (
	"container/heap"
	"context"
	"sync"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
)

// evictAfter bounds the number of terminal job entries kept in memory.
const evictAfter = 1024

type entry struct {
	job       *domain.AuditJob
	state     domain.JobState
	cancelled bool
	seq       uint64
}

// item is a heap element. Entries cancelled while Waiting stay in the heap
// as tombstones and are skipped at pop.
type item struct {
	jobID    string
	priority domain.Priority
	seq      uint64
}

type jobHeap []item

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	// FIFO within a priority band
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(item)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Store is an in-memory prioritized job store. A single mutex guards the
// heaps and the job table so dequeue-and-mark-active is atomic: concurrent
// workers polling the same kind never receive the same job.
type Store struct {
	mu      sync.Mutex
	heaps   map[domain.Kind]*jobHeap
	jobs    map[string]*entry
	byAudit map[string]string
	ring    []string
	seq     uint64
	closed  bool
	done    chan struct{}

	wake map[domain.Kind]chan struct{}

	waiting   int
	active    int
	completed int
	failed    int
	cancelled int
}

func NewStore() *Store {
	s := &Store{
		heaps:   make(map[domain.Kind]*jobHeap),
		jobs:    make(map[string]*entry),
		byAudit: make(map[string]string),
		done:    make(chan struct{}),
		wake:    make(map[domain.Kind]chan struct{}),
	}
	for _, k := range domain.Kinds {
		h := make(jobHeap, 0)
		s.heaps[k] = &h
		s.wake[k] = make(chan struct{}, 1)
	}
	return s
}

// Enqueue adds a Waiting job. It never blocks the caller.
func (s *Store) Enqueue(_ context.Context, job *domain.AuditJob) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	h, ok := s.heaps[job.Kind]
	if !ok {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	s.seq++
	s.jobs[job.ID] = &entry{job: job, state: domain.StateWaiting, seq: s.seq}
	s.byAudit[job.AuditID] = job.ID
	heap.Push(h, item{jobID: job.ID, priority: job.Priority, seq: s.seq})
	s.waiting++
	wake := s.wake[job.Kind]
	s.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue returns the highest-priority, oldest-first Waiting job of the
// kind, atomically transitioning it to Active. It blocks until a job is
// available, the store closes, or ctx is done.
func (s *Store) Dequeue(ctx context.Context, kind domain.Kind) (*domain.AuditJob, bool) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		if job := s.popLocked(kind); job != nil {
			// re-signal when more work remains so sibling workers are not
			// left sleeping on a coalesced wake
			more := s.heaps[kind].Len() > 0
			wake := s.wake[kind]
			s.mu.Unlock()
			if more {
				select {
				case wake <- struct{}{}:
				default:
				}
			}
			return job, true
		}
		wake := s.wake[kind]
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-s.done:
			return nil, false
		case <-wake:
		}
	}
}

func (s *Store) popLocked(kind domain.Kind) *domain.AuditJob {
	h, ok := s.heaps[kind]
	if !ok {
		return nil
	}
	for h.Len() > 0 {
		it := heap.Pop(h).(item)
		e, ok := s.jobs[it.jobID]
		if !ok || e.state != domain.StateWaiting {
			continue // tombstone from a cancellation
		}
		e.state = domain.StateActive
		s.waiting--
		s.active++
		return e.job
	}
	return nil
}

// MarkCompleted finalizes an Active job. Repeating the same terminal
// outcome is a no-op.
func (s *Store) MarkCompleted(jobID string) {
	s.terminal(jobID, domain.StateCompleted)
}

// MarkFailed finalizes an Active job as failed. The error is recorded by
// the record store, not here; err may be nil.
func (s *Store) MarkFailed(jobID string, _ error) {
	s.terminal(jobID, domain.StateFailed)
}

// MarkCancelled finalizes an Active job whose cancellation flag was
// observed by the pipeline.
func (s *Store) MarkCancelled(jobID string) {
	s.terminal(jobID, domain.StateCancelled)
}

func (s *Store) terminal(jobID string, to domain.JobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok || e.state.Terminal() {
		return
	}
	switch e.state {
	case domain.StateWaiting:
		s.waiting--
	case domain.StateActive:
		s.active--
	}
	e.state = to
	switch to {
	case domain.StateCompleted:
		s.completed++
	case domain.StateFailed:
		s.failed++
	case domain.StateCancelled:
		s.cancelled++
	}
	s.evictLocked(jobID)
}

// evictLocked keeps the terminal set bounded.
func (s *Store) evictLocked(jobID string) {
	s.ring = append(s.ring, jobID)
	for len(s.ring) > evictAfter {
		old := s.ring[0]
		s.ring = s.ring[1:]
		if e, ok := s.jobs[old]; ok {
			delete(s.byAudit, e.job.AuditID)
			delete(s.jobs, old)
		}
	}
}

// Cancel moves a Waiting job straight to Cancelled; for an Active job it
// records the flag and leaves finalization to the running worker. Returns
// false once the job is terminal.
func (s *Store) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(jobID)
}

func (s *Store) cancelLocked(jobID string) bool {
	e, ok := s.jobs[jobID]
	if !ok || e.state.Terminal() {
		return false
	}
	e.cancelled = true
	if e.state == domain.StateWaiting {
		e.state = domain.StateCancelled
		s.waiting--
		s.cancelled++
		s.evictLocked(jobID)
	}
	return true
}

// CancelByAudit resolves the audit's live job and cancels it, reporting the
// state the job held when the flag was set.
func (s *Store) CancelByAudit(auditID string) (domain.JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobID, ok := s.byAudit[auditID]
	if !ok {
		return "", false
	}
	e := s.jobs[jobID]
	was := e.state
	if !s.cancelLocked(jobID) {
		return was, false
	}
	return was, true
}

// Cancelled reports the cooperative cancellation flag.
func (s *Store) Cancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	return ok && e.cancelled
}

// Stats derives queue statistics on demand.
func (s *Store) Stats() domain.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.QueueStats{
		Waiting:   s.waiting,
		Active:    s.active,
		Completed: s.completed,
		Failed:    s.failed,
		Cancelled: s.cancelled,
	}
}

// Ping reports store availability for health checks.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

// Close stops accepting work and unblocks every waiting Dequeue.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

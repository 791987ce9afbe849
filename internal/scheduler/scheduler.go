// Package scheduler implements the Scheduler: an in-memory priority queue
// of crawl/refresh/cleanup/sync Jobs, drained by a worker loop built on the
// platform ticker abstraction, with a bounded job-history ring buffer for
// the stats operation.
package scheduler

import (
	"container/heap"
	"container/ring"
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/platform/clock"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
)

const defaultHistorySize = 500

// jobItem is one entry in the priority queue: higher Priority runs first;
// ties broken by earlier ScheduledAt.
type jobItem struct {
	job   domain.Job
	index int
}

type jobHeap []*jobItem

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].job.ScheduledAt.Before(h[j].job.ScheduledAt)
}
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *jobHeap) Push(x interface{}) {
	item := x.(*jobItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Runner executes one Job; the Scheduler does not know what a crawl_domain
// or cleanup job actually does, only how to sequence and retry them.
type Runner interface {
	Run(ctx context.Context, job domain.Job) error
}

// Scheduler holds the pending-job priority queue and a bounded run history.
type Scheduler struct {
	mu      sync.Mutex
	pending jobHeap
	history *ring.Ring

	runner Runner
	clock  clock.Clock
	logger zerolog.Logger

	nextSeq int
}

// New builds a Scheduler with a bounded history of historySize entries (0
// means defaultHistorySize).
func New(runner Runner, c clock.Clock, logger zerolog.Logger, historySize int) *Scheduler {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	s := &Scheduler{
		runner:  runner,
		clock:   c,
		logger:  logger,
		history: ring.New(historySize),
	}
	heap.Init(&s.pending)
	return s
}

// Enqueue adds a Job to the pending queue, assigning it an id if it has
// none. Returns the id.
func (s *Scheduler) Enqueue(job domain.Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		s.nextSeq++
		job.ID = jobIDFrom(s.nextSeq)
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = s.clock.Now()
	}
	job.Status = domain.JobStatusPending

	heap.Push(&s.pending, &jobItem{job: job})
	observability.SchedulerQueueDepth.Set(float64(s.pending.Len()))
	return job.ID
}

// Pending reports how many jobs are waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// RunOnce pops the highest-priority pending job, if any, and runs it
// through the Runner, recording the outcome in history.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.pending.Len() == 0 {
		s.mu.Unlock()
		return false
	}
	item := heap.Pop(&s.pending).(*jobItem)
	observability.SchedulerQueueDepth.Set(float64(s.pending.Len()))
	s.mu.Unlock()

	job := item.job
	job.Status = domain.JobStatusRunning
	startedAt := s.clock.Now()
	job.StartedAt = &startedAt

	err := s.runner.Run(ctx, job)

	finishedAt := s.clock.Now()
	job.FinishedAt = &finishedAt
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		s.logger.Error().Err(err).Str("job_id", job.ID).Str("type", string(job.Type)).Msg("job failed")
	} else {
		job.Status = domain.JobStatusCompleted
	}
	observability.SchedulerJobsRun.WithLabelValues(string(job.Type), string(job.Status)).Inc()

	s.recordHistory(job)
	return true
}

func (s *Scheduler) recordHistory(job domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Value = job
	s.history = s.history.Next()
}

// History returns completed/failed jobs, most recent first.
func (s *Scheduler) History() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	s.history.Do(func(v interface{}) {
		if v == nil {
			return
		}
		out = append([]domain.Job{v.(domain.Job)}, out...)
	})
	return out
}

// Drain runs RunOnce in a loop until the pending queue is empty or ctx is
// cancelled; used by a ticker task to clear whatever accumulated since the
// last tick.
func (s *Scheduler) Drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !s.RunOnce(ctx) {
			return
		}
	}
}

func jobIDFrom(seq int) string {
	return "job-" + itoaBase36(seq)
}

func itoaBase36(n int) string {
	if n == 0 {
		return "0"
	}
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%36]
		n /= 36
	}
	return string(buf[i:])
}

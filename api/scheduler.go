/*
scheduler.go - Background runner for reconciliation jobs

PURPOSE:
  PDF extraction and reconciliation can take seconds, so uploads are queued
  and processed by a fixed pool of worker goroutines. Clients poll the job
  by id.

DESIGN:
  - Bounded: Workers goroutines, a queue of QueueSize pending jobs;
    Submit fails with ErrQueueFull instead of blocking the request
  - A job is never interrupted once started: workers run it with a
    context detached from the HTTP request, and Stop waits for the queue
    to drain
  - Finished jobs are kept in memory (newest first on List), capped at
    MaxKept

LIFECYCLE:
  queued -> running -> succeeded | failed

USAGE:
  jobs := NewJobRunner(2, process)
  jobs.Start()
  // ... later
  jobs.Stop()

SEE ALSO:
  - handlers.go: SubmitReconciliation / GetJob
  - pipeline/pipeline.go: what process runs
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/attendance-engine/report"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

var (
	ErrQueueFull     = errors.New("job queue is full")
	ErrRunnerStopped = errors.New("job runner is not accepting jobs")
)

// Upload is one pair of report files sent by a client.
type Upload struct {
	AbsenceName string
	Absence     []byte
	AccessName  string
	Access      []byte
}

// JobResult is what a successful job produced.
type JobResult struct {
	RunID    string
	Date     string
	Reports  *report.Paths
	Warnings []string
}

// ProcessFunc runs one upload to completion.
type ProcessFunc func(ctx context.Context, u Upload) (JobResult, error)

// Job is the tracked state of one upload.
type Job struct {
	ID          string
	Status      JobStatus
	AbsenceFile string
	AccessFile  string
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Result      JobResult
	Error       string
}

// DTO renders the job for API responses.
func (j Job) DTO() JobDTO {
	dto := JobDTO{
		ID:          j.ID,
		Status:      j.Status,
		AbsenceFile: j.AbsenceFile,
		AccessFile:  j.AccessFile,
		SubmittedAt: j.SubmittedAt.Format(time.RFC3339),
		RunID:       j.Result.RunID,
		Date:        j.Result.Date,
		Reports:     j.Result.Reports,
		Warnings:    j.Result.Warnings,
		Error:       j.Error,
	}
	if !j.FinishedAt.IsZero() {
		dto.FinishedAt = j.FinishedAt.Format(time.RFC3339)
	}
	return dto
}

type task struct {
	id     string
	upload Upload
}

// JobRunner processes uploads on a bounded worker pool.
type JobRunner struct {
	Workers   int
	QueueSize int
	MaxKept   int
	Metrics   *Metrics
	Log       zerolog.Logger

	process ProcessFunc
	queue   chan task

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewJobRunner creates a runner; call Start before submitting.
func NewJobRunner(workers int, process ProcessFunc) *JobRunner {
	if workers < 1 {
		workers = 1
	}
	return &JobRunner{
		Workers:   workers,
		QueueSize: 16,
		MaxKept:   200,
		Log:       zerolog.Nop(),
		process:   process,
		jobs:      make(map[string]*Job),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (jr *JobRunner) Start() {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	if jr.started {
		return
	}
	jr.started = true
	jr.queue = make(chan task, jr.QueueSize)
	for i := 0; i < jr.Workers; i++ {
		jr.wg.Add(1)
		go jr.worker()
	}
	jr.Log.Info().Int("workers", jr.Workers).Int("queue", jr.QueueSize).Msg("job runner started")
}

// Stop refuses new jobs and waits for queued and running ones to finish.
func (jr *JobRunner) Stop() {
	jr.mu.Lock()
	if !jr.started || jr.stopped {
		jr.stopped = true
		jr.mu.Unlock()
		return
	}
	jr.stopped = true
	close(jr.queue)
	jr.mu.Unlock()

	jr.wg.Wait()
	jr.Log.Info().Msg("job runner stopped")
}

// Submit queues an upload and returns its job.
func (jr *JobRunner) Submit(u Upload) (Job, error) {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	if !jr.started || jr.stopped {
		return Job{}, ErrRunnerStopped
	}

	job := &Job{
		ID:          uuid.NewString(),
		Status:      JobQueued,
		AbsenceFile: u.AbsenceName,
		AccessFile:  u.AccessName,
		SubmittedAt: time.Now().UTC(),
	}
	select {
	case jr.queue <- task{id: job.ID, upload: u}:
	default:
		return Job{}, ErrQueueFull
	}

	jr.jobs[job.ID] = job
	jr.order = append(jr.order, job.ID)
	jr.evictLocked()
	if jr.Metrics != nil {
		jr.Metrics.JobsInFlight.Inc()
	}
	return *job, nil
}

// Get returns a snapshot of a job.
func (jr *JobRunner) Get(id string) (Job, bool) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	j, ok := jr.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns every kept job, newest first.
func (jr *JobRunner) List() []Job {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	out := make([]Job, 0, len(jr.order))
	for i := len(jr.order) - 1; i >= 0; i-- {
		out = append(out, *jr.jobs[jr.order[i]])
	}
	return out
}

func (jr *JobRunner) worker() {
	defer jr.wg.Done()
	for t := range jr.queue {
		jr.run(t)
	}
}

func (jr *JobRunner) run(t task) {
	jr.update(t.id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = time.Now().UTC()
	})

	res, err := jr.process(context.Background(), t.upload)

	jr.update(t.id, func(j *Job) {
		j.FinishedAt = time.Now().UTC()
		j.Result = res
		if err != nil {
			j.Status = JobFailed
			j.Error = err.Error()
			jr.Log.Warn().Str("job", t.id).Err(err).Msg("job failed")
			return
		}
		j.Status = JobSucceeded
	})
	if jr.Metrics != nil {
		jr.Metrics.JobsInFlight.Dec()
	}
}

func (jr *JobRunner) update(id string, fn func(*Job)) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	if j, ok := jr.jobs[id]; ok {
		fn(j)
	}
}

// evictLocked drops the oldest finished jobs beyond MaxKept.
func (jr *JobRunner) evictLocked() {
	if jr.MaxKept <= 0 || len(jr.order) <= jr.MaxKept {
		return
	}
	kept := jr.order[:0]
	excess := len(jr.order) - jr.MaxKept
	for _, id := range jr.order {
		j := jr.jobs[id]
		if excess > 0 && (j.Status == JobSucceeded || j.Status == JobFailed) {
			delete(jr.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	jr.order = kept
}

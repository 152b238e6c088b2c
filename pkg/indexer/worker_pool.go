package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/util"
)

// FileJob is a file to be analyzed by the worker pool.
type FileJob struct {
	FilePath string
	JobID    int
	Options  cjs.Options
}

// FileResult is the analysis of one job.
type FileResult struct {
	FilePath string
	Exports  *FileExports
	Cached   bool
	JobID    int
}

// ErrPoolStopped is returned by Submit after Stop or cancellation.
var ErrPoolStopped = errors.New("worker pool is stopped")

// WorkerPool runs file analyses on a fixed set of goroutines.
//
// **Architecture:**
//   - Buffered channels for job distribution
//   - Separate result and error channels
//   - Cancelling the parent context stops the workers, even ones blocked
//     on an unread result
//
// **Usage:**
//
//	pool := NewWorkerPool(ctx, numWorkers, analyzer, logger)
//	pool.Start()
//	defer pool.Stop()
//
//	go func() {
//	    for _, file := range files {
//	        pool.Submit(FileJob{FilePath: file})
//	    }
//	    pool.FinishSubmitting()
//	}()
//
//	for i := 0; i < len(files); i++ {
//	    select {
//	    case result := <-pool.Results():
//	    case err := <-pool.Errors():
//	    }
//	}
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	results    chan FileResult
	errors     chan FileError
	wg         sync.WaitGroup
	analyzer   *FileAnalyzer
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool
	closeMu    sync.RWMutex // held for reading by Submit while sending

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsCached    atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a worker pool.
//
// numWorkers of 0 uses util.GetOptimalPoolSize(), the same size as the
// parser pools, so every worker can hold a parser without waiting.
func NewWorkerPool(ctx context.Context, numWorkers int, analyzer *FileAnalyzer, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = util.GetOptimalPoolSize()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		analyzer:   analyzer,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the worker goroutines. It must be called before Submit.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("WorkerPool already started")
		return
	}

	wp.logger.Debug("Starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if !wp.processJob(id, job) {
				return
			}
		}
	}
}

// processJob analyzes one file. It returns false if the pool was
// cancelled while delivering the outcome.
func (wp *WorkerPool) processJob(workerID int, job FileJob) bool {
	fe, cached, err := wp.analyzer.Analyze(job.FilePath, job.Options)
	if err != nil {
		wp.logger.Debug("Analysis failed", "worker_id", workerID, "file", job.FilePath, "error", err)
		wp.jobsFailed.Add(1)
		select {
		case wp.errors <- FileError{FilePath: job.FilePath, Error: err}:
			return true
		case <-wp.ctx.Done():
			return false
		}
	}

	wp.jobsProcessed.Add(1)
	if cached {
		wp.jobsCached.Add(1)
	}
	select {
	case wp.results <- FileResult{FilePath: job.FilePath, Exports: fe, Cached: cached, JobID: job.JobID}:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job FileJob) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()

	if wp.stopped.Load() || wp.jobsClosed.Load() {
		return ErrPoolStopped
	}

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("%w: %v", ErrPoolStopped, context.Cause(wp.ctx))
	case wp.jobs <- job:
		wp.jobsSubmitted.Add(1)
		return nil
	}
}

// Results returns the results channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// Errors returns the errors channel. It is closed by Stop.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the job queue; workers exit once it drains.
// It waits for in-flight Submit calls. Safe to call more than once.
func (wp *WorkerPool) FinishSubmitting() {
	wp.closeMu.Lock()
	defer wp.closeMu.Unlock()

	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("Jobs channel closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// Wait blocks until all workers have exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop cancels outstanding work, waits for the workers and closes the
// result and error channels. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.cancel()
	wp.FinishSubmitting()
	wp.wg.Wait()

	close(wp.results)
	close(wp.errors)

	wp.logger.Debug("Worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsCached:    wp.jobsCached.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		QueueLength:   len(wp.jobs),
		ResultsQueued: len(wp.results),
		ErrorsQueued:  len(wp.errors),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsCached    int64
	JobsFailed    int64
	QueueLength   int // Current jobs in queue
	ResultsQueued int // Results waiting to be consumed
	ErrorsQueued  int // Errors waiting to be consumed
}

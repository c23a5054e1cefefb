package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmogame/backend/internal/metrics"
	"github.com/mmogame/backend/internal/models"
)

var (
	ErrQueueFull   = errors.New("estimation queue is full")
	ErrQueueClosed = errors.New("estimation queue is closed")
)

// maxRetainedJobs bounds how many finished jobs stay queryable.
const maxRetainedJobs = 1000

// Runner runs one estimation and returns the snapshot key id.
type Runner interface {
	Run(ctx context.Context, gameID int64, numGame int, userID int64) (int64, error)
}

// Queue runs estimation jobs on a fixed pool of goroutines, away from the
// request path. Jobs beyond the buffer size are rejected, not blocked on.
type Queue struct {
	runner Runner
	jobs   chan string
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	status   map[string]*models.EstimationJob
	finished []string
}

func NewQueue(runner Runner, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		runner: runner,
		jobs:   make(chan string, size),
		status: make(map[string]*models.EstimationJob),
	}
}

// Start launches n workers. They exit when the queue is closed or ctx ends.
func (q *Queue) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-q.jobs:
			if !ok {
				return
			}
			metrics.EstimationQueueDepth.Dec()
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	job := q.status[id]
	job.Status = models.JobRunning
	gameID, numGame, userID := job.GameID, job.NumGame, job.UserID
	q.mu.Unlock()

	keyID, err := q.runner.Run(ctx, gameID, numGame, userID)

	q.mu.Lock()
	defer q.mu.Unlock()
	job.Finished = time.Now().Unix()
	if err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		log.Printf("WARN: [worker] estimation job %s for game %d failed: %v", id, gameID, err)
	} else {
		job.Status = models.JobDone
		job.KeyID = keyID
	}
	q.finished = append(q.finished, id)
	for len(q.finished) > maxRetainedJobs {
		delete(q.status, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// Enqueue schedules an estimation of one game generation. numGame zero
// selects the generation current when the job runs.
func (q *Queue) Enqueue(gameID int64, numGame int, userID int64) (*models.EstimationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	job := &models.EstimationJob{
		ID:      uuid.NewString(),
		GameID:  gameID,
		NumGame: numGame,
		UserID:  userID,
		Status:  models.JobQueued,
		Queued:  time.Now().Unix(),
	}
	select {
	case q.jobs <- job.ID:
	default:
		return nil, ErrQueueFull
	}
	q.status[job.ID] = job
	metrics.EstimationQueueDepth.Inc()

	cp := *job
	return &cp, nil
}

// Job returns a snapshot of a job's status.
func (q *Queue) Job(id string) (*models.EstimationJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.status[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Close stops accepting jobs and waits for the workers to drain the queue.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

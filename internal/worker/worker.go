package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type JobType string

const (
	JobTypeEmailNotification JobType = "email_notification"
	JobTypeTokenCleanup      JobType = "token_cleanup"
)

const (
	DefaultQueue    = "scrumboard:jobs"
	DelayedSetKey   = "scrumboard:jobs:delayed"
	DeadQueueKey    = "scrumboard:jobs:dead"
	defaultMaxTries = 3
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client      *redis.Client
	concurrency int
	handlers    map[JobType]JobHandler
	queues      []string
	poll        time.Duration
	retryBase   time.Duration
	jobTimeout  time.Duration
	logger      log.FieldLogger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
	// RetryBase is the first retry delay; each further attempt doubles it.
	RetryBase  time.Duration
	JobTimeout time.Duration
	Logger     log.FieldLogger
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.RetryBase <= 0 {
		config.RetryBase = time.Minute
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}

	return &Worker{
		client:      config.RedisClient,
		concurrency: config.Concurrency,
		handlers:    make(map[JobType]JobHandler),
		queues:      config.Queues,
		poll:        config.PollInterval,
		retryBase:   config.RetryBase,
		jobTimeout:  config.JobTimeout,
		logger:      config.Logger.WithField("component", "worker"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the configured number of consumers and the delayed-job promoter.
func (w *Worker) Start() {
	w.logger.Infof("Starting worker with %d goroutines", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}

	w.wg.Add(1)
	go w.promoteLoop()
}

// Schedule enqueues a job of jobType every interval until the worker stops.
func (w *Worker) Schedule(interval time.Duration, jobType JobType, payload map[string]interface{}) {
	queue := NewJobQueue(w.client)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				if err := queue.Enqueue(w.ctx, w.queues[0], jobType, payload); err != nil && w.ctx.Err() == nil {
					w.logger.WithError(err).WithField("job_type", jobType).Warn("Failed to schedule job")
				}
			}
		}
	}()
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNextJob(); err != nil && w.ctx.Err() == nil {
				w.logger.WithError(err).Error("Error processing job")
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (w *Worker) promoteLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.promoteDueJobs(w.ctx, time.Now()); err != nil && w.ctx.Err() == nil {
				w.logger.WithError(err).Warn("Failed to promote delayed jobs")
			}
		}
	}
}

// promoteDueJobs moves delayed jobs whose time has come back onto their queue.
func (w *Worker) promoteDueJobs(ctx context.Context, now time.Time) (int, error) {
	due, err := w.client.ZRangeByScore(ctx, DelayedSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, data := range due {
		removed, err := w.client.ZRem(ctx, DelayedSetKey, data).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			w.logger.WithError(err).Warn("Dropping malformed delayed job")
			continue
		}
		if err := w.enqueueJob(ctx, job.queueOr(w.queues[0]), &job); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, 5*time.Second, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	job.Queue = job.queueOr(result[0])

	if time.Now().Before(job.ProcessAt) {
		return w.delayJob(w.ctx, &job)
	}

	return w.executeJob(&job)
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	logger := w.logger.WithFields(log.Fields{"job_id": job.ID, "job_type": job.Type})
	logger.Debug("Processing job")

	ctx, cancel := context.WithTimeout(w.ctx, w.jobTimeout)
	defer cancel()

	err := handler(ctx, job)
	if err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			logger.WithError(err).Warnf("Job failed (attempt %d/%d), retrying", job.Attempts, job.MaxTries)
			return w.retryJob(job)
		}

		logger.WithError(err).Errorf("Job failed permanently after %d attempts", job.Attempts)
		return w.moveToDeadQueue(job, err)
	}

	logger.Debug("Job completed")
	return nil
}

func (w *Worker) retryJob(job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = time.Now().Add(delay)
	return w.delayJob(w.ctx, job)
}

func (w *Worker) delayJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return w.client.ZAdd(ctx, DelayedSetKey, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

func (w *Worker) enqueueJob(ctx context.Context, queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(ctx, queue, jobData).Err()
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(w.ctx, DeadQueueKey, deadJobData).Err()
}

func (j *Job) queueOr(fallback string) string {
	if j.Queue != "" {
		return j.Queue
	}
	return fallback
}

type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  defaultMaxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

// Depths reports the length of each queue plus the delayed set and the dead
// queue, keyed by Redis key.
func (q *JobQueue) Depths(ctx context.Context, queues []string) (map[string]int64, error) {
	depths := make(map[string]int64, len(queues)+2)
	for _, queue := range append(append([]string{}, queues...), DeadQueueKey) {
		size, err := q.GetQueueSize(ctx, queue)
		if err != nil {
			return nil, fmt.Errorf("failed to read queue %s: %w", queue, err)
		}
		depths[queue] = size
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	delayed, err := q.client.ZCard(ctx, DelayedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delayed set: %w", err)
	}
	depths[DelayedSetKey] = delayed
	return depths, nil
}

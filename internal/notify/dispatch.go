package notify

import (
	"context"
	"fmt"
	"time"

	"scrumboard/backend/internal/worker"

	log "github.com/sirupsen/logrus"
)

// Dispatcher hands a message off for delivery without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DirectDispatcher sends in a background goroutine and logs failures.
type DirectDispatcher struct {
	mailer  Mailer
	timeout time.Duration
	logger  log.FieldLogger
}

func NewDirectDispatcher(mailer Mailer, timeout time.Duration, logger log.FieldLogger) *DirectDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DirectDispatcher{mailer: mailer, timeout: timeout, logger: logger}
}

func (d *DirectDispatcher) Dispatch(_ context.Context, msg Message) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.WithError(err).WithField("to", msg.To).Error("Failed to send email")
		}
	}()
	return nil
}

type QueueDispatcher struct {
	queue     *worker.JobQueue
	queueName string
}

func NewQueueDispatcher(queue *worker.JobQueue, queueName string) *QueueDispatcher {
	if queueName == "" {
		queueName = worker.DefaultQueue
	}
	return &QueueDispatcher{queue: queue, queueName: queueName}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if err := d.queue.Enqueue(ctx, d.queueName, worker.JobTypeEmailNotification, payload); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

// EmailJobHandler delivers queued email jobs through mailer.
func EmailJobHandler(mailer Mailer) worker.JobHandler {
	return func(ctx context.Context, job *worker.Job) error {
		msg := Message{
			To:      payloadString(job.Payload, "to"),
			Subject: payloadString(job.Payload, "subject"),
			HTML:    payloadString(job.Payload, "html"),
		}
		if msg.To == "" {
			return fmt.Errorf("email job %s has no recipient", job.ID)
		}
		return mailer.Send(ctx, msg)
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

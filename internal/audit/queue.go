package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/store"
)

const (
	QueueAudit     = "audit"
	TaskTypeRecord = "audit:record"
)

func NewRecordTask(entry domain.AuditLog) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data), nil
}

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands entries to the worker. When Redis rejects the task the
// entry is written synchronously through fallback instead of being dropped.
type QueueSink struct {
	client   Enqueuer
	fallback Sink
}

func NewQueueSink(client Enqueuer, fallback Sink) *QueueSink {
	return &QueueSink{client: client, fallback: fallback}
}

func (q *QueueSink) Record(ctx context.Context, entry domain.AuditLog) error {
	task, err := NewRecordTask(entry)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(QueueAudit), asynq.MaxRetry(5)); err != nil {
		logger.FromContext(ctx).Warnw("audit enqueue failed, writing inline", "action", entry.Action, "error", err)
		if q.fallback == nil {
			return err
		}
		return q.fallback.Record(ctx, entry)
	}
	return nil
}

func NewRecordHandler(s store.AuditStore) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry domain.AuditLog
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return fmt.Errorf("decode audit entry: %v: %w", err, asynq.SkipRetry)
		}
		return s.CreateAuditLog(ctx, entry)
	}
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(redisOpts asynq.RedisClientOpt, s store.AuditStore) *Worker {
	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			QueueAudit: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeRecord, NewRecordHandler(s))
	return &Worker{server: srv, mux: mux}
}

func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Close() error {
	w.server.Shutdown()
	return nil
}

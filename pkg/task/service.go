package task

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuer{client: client}
}

// Enqueue submits the task. A task whose ID is already queued counts as
// enqueued and yields a nil TaskInfo.
func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	log := logger.FromContext(ctx).With(zap.String("task_type", task.Type()))

	info, err := e.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		log.Info("task already queued")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	log.Debug("task enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return info, nil
}

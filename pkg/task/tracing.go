package task

import (
	"context"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps every handled task in a consumer span.
func Tracing(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		attrs := []attribute.KeyValue{attribute.String("task.type", t.Type())}
		if id, ok := asynq.GetTaskID(ctx); ok {
			attrs = append(attrs, attribute.String("task.id", id))
		}
		if retried, ok := asynq.GetRetryCount(ctx); ok {
			attrs = append(attrs, attribute.Int("task.retried", retried))
		}

		ctx, span := otel.Tracer("marketplace-ledger/task").Start(ctx, t.Type(),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next.ProcessTask(ctx, t)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

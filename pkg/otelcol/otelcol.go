package otelcol

import (
	"context"

	"marketplace-ledger/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otel",
	fx.Provide(NewTracerProvider),
	fx.Invoke(register),
)

func Resource(cfg *config.Config) *resource.Resource {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		return resource.Default()
	}
	return res
}

// NewTracerProvider samples by OTEL_SAMPLE_RATIO and batches spans to the
// collector when one is configured. Without a collector spans are still
// created so trace ids reach the logs.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{
		trace.WithResource(Resource(cfg)),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.Otel.SampleRatio))),
	}

	exporter, err := NewExporter(cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
		zap.L().Info("[Otel] exporting traces",
			zap.String("endpoint", cfg.Otel.Endpoint),
			zap.String("protocol", cfg.Otel.Protocol))
	}

	tp := trace.NewTracerProvider(opts...)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func register(tp *trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

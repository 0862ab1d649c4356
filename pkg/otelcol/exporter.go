package otelcol

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

// NewExporter dials the collector at OTEL_ENDPOINT over OTEL_PROTOCOL.
// It returns nil when no endpoint is configured.
func NewExporter(cfg *config.Config) (*otlptrace.Exporter, error) {
	o := cfg.Otel
	if o.Endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var client otlptrace.Client
	switch o.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(o.Endpoint),
			otlptracegrpc.WithCompressor("gzip"),
		}
		if o.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	case "http", "":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(o.Endpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		}
		if o.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported otel protocol %q", o.Protocol)
	}

	return otlptrace.New(ctx, client)
}

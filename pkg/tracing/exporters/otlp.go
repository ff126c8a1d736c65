package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	defaultTimeout = 10 * time.Second
)

// OTLPConfig points the span exporter at a collector. Endpoint is host:port,
// usually 4317 for gRPC and 4318 for HTTP.
type OTLPConfig struct {
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

// ParseHeaders turns "k1=v1,k2=v2" into a header map. Malformed pairs are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}

// NewOTLPExporter builds the exporter for cfg.Protocol; an empty protocol
// means gRPC.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Protocol {
	case ProtocolGRPC, "":
		return otlptracegrpc.New(ctx, grpcOptions(cfg)...)
	case ProtocolHTTP:
		return otlptracehttp.New(ctx, httpOptions(cfg)...)
	}
	return nil, fmt.Errorf("unsupported otlp protocol %q", cfg.Protocol)
}

func grpcOptions(cfg OTLPConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return opts
}

func httpOptions(cfg OTLPConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
		otlptracehttp.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

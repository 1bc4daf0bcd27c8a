//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides distributed tracing for graph execution.
// It integrates with OpenTelemetry; without Start the global tracer is a
// no-op and execution carries no tracing overhead.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Instrumentation identity defaults.
const (
	instrumentName          = "trpc.group.trpc-go.trpc-graph-go"
	defaultServiceName      = "trpc-graph-go"
	defaultServiceVersion   = "v0.1.0"
	defaultServiceNamespace = "trpc"

	// ProtocolGRPC exports traces over OTLP/gRPC.
	ProtocolGRPC = "grpc"
	// ProtocolHTTP exports traces over OTLP/HTTP.
	ProtocolHTTP = "http"
)

// TracerProvider is the global tracer provider for telemetry.
var TracerProvider trace.TracerProvider = noop.NewTracerProvider()

// Tracer is the global tracer instance for telemetry.
var Tracer trace.Tracer = TracerProvider.Tracer("")

// Start enables trace collection with optional configuration.
// The environment variables described below can be used for endpoint
// configuration.
//
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_TRACES_ENDPOINT
// (default: "localhost:4317" for gRPC, "localhost:4318" for HTTP)
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		serviceName:      defaultServiceName,
		serviceVersion:   defaultServiceVersion,
		serviceNamespace: defaultServiceNamespace,
		protocol:         ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.tracesEndpoint == "" {
		options.tracesEndpoint = tracesEndpoint(options.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdownTracerProvider func(context.Context) error
	switch options.protocol {
	case ProtocolHTTP:
		shutdownTracerProvider, err = initHTTPTracerProvider(ctx, res, options)
	default:
		shutdownTracerProvider, err = initGRPCTracerProvider(ctx, res, options)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	Tracer = otel.Tracer(instrumentName)
	return func() error {
		if err := shutdownTracerProvider(ctx); err != nil {
			return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
		}
		return nil
	}, nil
}

// Option is a function that configures tracer options.
type Option func(*options)

type options struct {
	tracesEndpoint    string
	tracesEndpointURL string
	serviceName       string
	serviceVersion    string
	serviceNamespace  string
	protocol          string
	headers           map[string]string
}

// WithEndpoint sets the traces endpoint (host and port) the exporter will
// connect to. The provided endpoint should resemble "example.com:4317" (no
// scheme or path).
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.tracesEndpoint = endpoint
	}
}

// WithEndpointURL sets the full target URL (scheme, host, port, path) the
// exporter will connect to. Takes precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(opts *options) {
		opts.tracesEndpointURL = endpointURL
	}
}

// WithProtocol sets the export protocol, "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithHeaders sets the headers to include in the trace requests.
func WithHeaders(headers map[string]string) Option {
	return func(opts *options) {
		opts.headers = headers
	}
}

// WithServiceName sets the reported service name.
func WithServiceName(name string) Option {
	return func(opts *options) {
		opts.serviceName = name
	}
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	switch protocol {
	case ProtocolHTTP:
		return "localhost:4318"
	default:
		return "localhost:4317"
	}
}

// parseEndpointURL splits a full URL into host:port and path components.
// A missing scheme defaults to "http://".
func parseEndpointURL(endpointURL string) (endpoint, urlPath string, err error) {
	originalURL := endpointURL
	if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
		endpointURL = "http://" + endpointURL
	}
	u, err := url.Parse(endpointURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse URL %q: %w", originalURL, err)
	}
	endpoint = u.Host
	if endpoint == "" {
		return "", "", fmt.Errorf("no host found in URL %q", originalURL)
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return endpoint, urlPath, nil
}

func initGRPCTracerProvider(ctx context.Context, res *resource.Resource, opts *options) (
	func(context.Context) error, error) {
	conn, err := grpc.NewClient(opts.tracesEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize traces connection: %w", err)
	}

	otelOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithEndpoint(opts.tracesEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithHeaders(opts.headers),
	}
	if opts.tracesEndpointURL != "" {
		otelOpts = append(otelOpts, otlptracegrpc.WithEndpoint(opts.tracesEndpointURL))
	}
	traceExporter, err := otlptracegrpc.New(ctx, otelOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return setupTracerProvider(res, traceExporter), nil
}

func initHTTPTracerProvider(ctx context.Context, res *resource.Resource, opts *options) (
	func(context.Context) error, error) {
	otelOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(opts.tracesEndpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithHeaders(opts.headers),
	}
	if opts.tracesEndpointURL != "" {
		endpoint, urlPath, err := parseEndpointURL(opts.tracesEndpointURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse endpoint URL %q: %w", opts.tracesEndpointURL, err)
		}
		otelOpts = append(otelOpts,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithURLPath(urlPath),
		)
	}
	traceExporter, err := otlptracehttp.New(ctx, otelOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP trace exporter: %w", err)
	}
	return setupTracerProvider(res, traceExporter), nil
}

func setupTracerProvider(res *resource.Resource, traceExporter sdktrace.SpanExporter) func(context.Context) error {
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	TracerProvider = tracerProvider
	return tracerProvider.Shutdown
}

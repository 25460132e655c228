// Package otel turns eventbus events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	reqid "github.com/hanpama/graphstitch/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "graphstitch"

// Setup configures OpenTelemetry and attaches subscribers to b.
// If endpoint is empty, no telemetry is configured.
func Setup(b *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	Register(b, tp.Tracer(tracerName))
	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	gqlSpans   sync.Map // rid -> trace.Span
	stepSpans  sync.Map // event ID -> trace.Span
	fetchSpans sync.Map // event ID -> trace.Span
}

// Register subscribes span handlers to b using tracer. It returns a
// function removing them.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unregister func()) {
	s := &subscriber{tracer: tracer}
	return s.register(b)
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func finish(spans *sync.Map, key string, fn func(trace.Span)) {
	v, ok := spans.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *subscriber) register(b *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.On(b, func(ctx context.Context, e events.HTTPStart) {
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("graphql.request_id", e.RequestID),
			)
			s.httpSpans.Store(e.RequestID, span)
		}),
		eventbus.On(b, func(ctx context.Context, e events.HTTPFinish) {
			finish(&s.httpSpans, e.RequestID, func(span trace.Span) {
				span.SetAttributes(
					semconv.HTTPStatusCodeKey.Int(e.Status),
					attribute.Int("graphql.operations", e.Operations),
				)
			})
		}),

		eventbus.On(b, func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx), "graphql.operation")
			span.SetAttributes(attribute.String("graphql.operation.name", e.OperationName))
			s.gqlSpans.Store(rid, span)
		}),
		eventbus.On(b, func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			finish(&s.gqlSpans, rid, func(span trace.Span) {
				span.SetAttributes(
					attribute.String("graphql.operation.type", e.OperationType),
					attribute.String("graphql.operation.digest", e.Digest),
					attribute.Int("graphql.error_count", len(e.Errors)),
				)
			})
		}),

		eventbus.On(b, func(ctx context.Context, e events.PlanFinish) {
			span := trace.SpanFromContext(s.parent(ctx))
			span.AddEvent("graphql.plan", trace.WithAttributes(
				attribute.String("graphql.plan.digest", e.Digest),
				attribute.Int("graphql.plan.steps", e.Steps),
				attribute.Bool("graphql.plan.cached", e.Cached),
			))
			recordError(span, e.Err)
		}),

		eventbus.On(b, func(ctx context.Context, e events.StepStart) {
			_, span := s.tracer.Start(s.parent(ctx), "graphql.step")
			span.SetAttributes(
				attribute.String("graphql.location", e.Location),
				attribute.IntSlice("graphql.steps", e.Steps),
				attribute.Bool("graphql.resolver", e.Resolver),
				attribute.Int("graphql.origins", e.Origins),
			)
			s.stepSpans.Store(e.ID, span)
		}),
		eventbus.On(b, func(ctx context.Context, e events.StepFinish) {
			finish(&s.stepSpans, e.ID, func(span trace.Span) {
				span.SetAttributes(attribute.Int("graphql.error_count", e.Errors))
				recordError(span, e.Err)
			})
		}),

		eventbus.On(b, func(ctx context.Context, e events.SubrequestStart) {
			_, span := s.tracer.Start(s.parent(ctx), "graphql.subrequest", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				attribute.String("graphql.location", e.Location),
				attribute.String("net.peer.name", e.Endpoint),
			)
			s.fetchSpans.Store(e.ID, span)
		}),
		eventbus.On(b, func(ctx context.Context, e events.SubrequestFinish) {
			finish(&s.fetchSpans, e.ID, func(span trace.Span) {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
				recordError(span, e.Err)
			})
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

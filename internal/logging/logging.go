// Package logging builds the zap logger and logs eventbus events.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	reqid "github.com/hanpama/graphstitch/internal/reqid"
)

// New builds a logger at the given level ("debug", "info", "warn", ...).
// Development loggers write human readable console output.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

func withRequest(ctx context.Context, log *zap.Logger) *zap.Logger {
	if rid, ok := reqid.FromContext(ctx); ok {
		return log.With(zap.String("request_id", rid))
	}
	return log
}

// Register logs request, plan and location events through log.
func Register(b *eventbus.Bus, log *zap.Logger) (unregister func()) {
	unsubs := []func(){
		eventbus.On(b, func(ctx context.Context, e events.HTTPFinish) {
			log.Info("http request",
				zap.String("request_id", e.RequestID),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Int("operations", e.Operations),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.On(b, func(ctx context.Context, e events.GraphQLFinish) {
			if len(e.Errors) == 0 {
				return
			}
			withRequest(ctx, log).Debug("operation finished with errors",
				zap.String("operation", e.OperationName),
				zap.String("digest", e.Digest),
				zap.Errors("errors", e.Errors),
			)
		}),
		eventbus.On(b, func(ctx context.Context, e events.PlanFinish) {
			l := withRequest(ctx, log)
			if e.Err != nil {
				l.Info("planning failed", zap.String("operation", e.OperationName), zap.Error(e.Err))
				return
			}
			l.Debug("plan ready",
				zap.String("operation", e.OperationName),
				zap.String("digest", e.Digest),
				zap.Int("steps", e.Steps),
				zap.Bool("cached", e.Cached),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.On(b, func(ctx context.Context, e events.StepFinish) {
			l := withRequest(ctx, log)
			fields := []zap.Field{
				zap.String("location", e.Location),
				zap.Ints("steps", e.Steps),
				zap.Bool("resolver", e.Resolver),
				zap.Int("origins", e.Origins),
				zap.Int("errors", e.Errors),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				l.Warn("location call failed", append(fields, zap.Error(e.Err))...)
				return
			}
			l.Debug("location call", fields...)
		}),
		eventbus.On(b, func(ctx context.Context, e events.SubrequestFinish) {
			if e.Err == nil {
				return
			}
			withRequest(ctx, log).Warn("sub-request failed",
				zap.String("location", e.Location),
				zap.String("endpoint", e.Endpoint),
				zap.Int("status", e.Status),
				zap.Error(e.Err),
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

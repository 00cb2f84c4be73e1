package api

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/metrics"
	"github.com/JakeFAU/coreapi/internal/routing"
	"github.com/JakeFAU/coreapi/internal/telemetry"
)

// Dispatcher resolves requests against a routing table and invokes the
// handler registered for the matched target.
type Dispatcher struct {
	table    *routing.Table
	handlers map[string]http.Handler
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewDispatcher fails if any rule in table targets a name missing from handlers.
func NewDispatcher(table *routing.Table, handlers map[string]http.Handler, logger *zap.Logger) (*Dispatcher, error) {
	if table == nil {
		return nil, fmt.Errorf("routing table is required")
	}
	for _, target := range table.Targets() {
		if handlers[target] == nil {
			return nil, fmt.Errorf("no handler registered for target %q", target)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := make(map[string]http.Handler, len(handlers))
	for k, v := range handlers {
		hs[k] = v
	}
	return &Dispatcher{
		table:    table,
		handlers: hs,
		logger:   logger,
		tracer:   telemetry.Tracer(),
	}, nil
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, ok := d.table.Resolve(r.Method, r.URL.Path)
	if !ok {
		metrics.ObserveRouteMiss(r.Method)
		d.logger.Debug("route not found",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		WriteError(w, http.StatusNotFound, "route not found")
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := d.tracer.Start(ctx, match.Target,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPTargetKey.String(r.URL.Path),
			attribute.String("coreapi.target", match.Target),
		),
	)
	defer span.End()

	start := time.Now()
	ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
	d.handlers[match.Target].ServeHTTP(ww, r.WithContext(routing.WithParams(ctx, match.Params)))

	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(ww.status))
	if ww.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(ww.status))
	}
	metrics.ObserveDispatch(match.Target, ww.status, time.Since(start))
}

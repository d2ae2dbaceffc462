// Package telemetry wires Sentry tracing and error capture into the QA
// pipeline. Every helper is a no-op when Sentry was never initialized.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
)

const (
	serviceName  = "docqa"
	flushTimeout = 5 * time.Second
)

// probe endpoints are never traced
var untracedTransactions = map[string]bool{
	"GET /health": true,
	"GET /ready":  true,
}

// headers that carry caller identity are dropped before events leave the process
var scrubbedHeaders = []string{"X-User-Id", "Authorization", "Cookie"}

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a function that flushes pending events.
// An empty DSN disables Sentry.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		logging.Default().Warn("sentry init failed, continuing without tracing", "error", err)
		return func() {}, nil
	}

	logging.Default().Info("sentry tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span == nil {
			return rate
		}
		if untracedTransactions[ctx.Span.Name] {
			return 0
		}
		var emptySpanID sentry.SpanID
		if ctx.Span.ParentSpanID != emptySpanID {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for _, h := range scrubbedHeaders {
			delete(event.Request.Headers, h)
			delete(event.Request.Headers, http.CanonicalHeaderKey(h))
		}
		event.Request.Cookies = ""
	}
	return event
}

// SpanAttributes contains common attributes for service spans.
// UserID must already be pseudonymized by the caller.
type SpanAttributes struct {
	DocumentID     string
	ConversationID string
	UserID         string
	Stage          string
	Operation      string
}

// Span wraps sentry.Span; the zero value is a no-op.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetStage retags the span with the pipeline stage in progress
func (s *Span) SetStage(stage string) {
	if s.inner != nil && stage != "" {
		s.inner.SetTag("stage", stage)
	}
}

// SetError records err on the span. Caller errors such as a missing document
// only tag the span; anything else is also sent to Sentry.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}

	s.inner.Status = SpanStatus(err)
	if kind := domain.KindOf(err); kind != domain.KindNone {
		s.inner.SetTag("error_kind", string(kind))
	}
	if !Reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// Context returns the span's context.
func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// SpanStatus maps an error to the span status that describes it
func SpanStatus(err error) sentry.SpanStatus {
	switch domain.KindOf(err) {
	case domain.KindNone:
		if err == nil {
			return sentry.SpanStatusOK
		}
		switch {
		case errors.Is(err, context.Canceled):
			return sentry.SpanStatusCanceled
		case errors.Is(err, context.DeadlineExceeded):
			return sentry.SpanStatusDeadlineExceeded
		}
		return sentry.SpanStatusInternalError
	case domain.KindDocumentNotFound, domain.KindAnalysisNotFound, domain.KindConversationNotFound:
		return sentry.SpanStatusNotFound
	case domain.KindConversationExists:
		return sentry.SpanStatusAlreadyExists
	case domain.KindInvalidInput:
		return sentry.SpanStatusInvalidArgument
	case domain.KindEmbeddingFailure, domain.KindGenerationFailure:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}

// Reportable reports whether err is worth an event in Sentry
func Reportable(err error) bool {
	switch SpanStatus(err) {
	case sentry.SpanStatusOK, sentry.SpanStatusNotFound, sentry.SpanStatusAlreadyExists,
		sentry.SpanStatusInvalidArgument, sentry.SpanStatusCanceled:
		return false
	}
	return true
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if span == nil {
		return
	}

	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.ConversationID != "" {
		span.SetTag("conversation_id", attrs.ConversationID)
	}
	if attrs.UserID != "" {
		span.SetTag("user", attrs.UserID)
	}
	if attrs.Stage != "" {
		span.SetTag("stage", attrs.Stage)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	setAttributes(span, attrs)
	return span.Context(), &Span{inner: span}
}

// CaptureMessage captures a message to Sentry with the current context.
func CaptureMessage(ctx context.Context, message string) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureMessage(message)
	} else {
		sentry.CaptureMessage(message)
	}
}

// AddBreadcrumb adds a breadcrumb to the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}

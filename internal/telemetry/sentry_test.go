package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "QAService.AskQuestion", SpanAttributes{
		DocumentID:     "doc1",
		ConversationID: "conv1",
		UserID:         "abcd",
		Stage:          "retrieving",
		Operation:      "ask",
	})
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	childCtx, child := StartSpan(ctx, "RetrievalEngine.FindRelevant", SpanAttributes{DocumentID: "doc1"})
	assert.NotNil(t, childCtx)

	span.SetStage("generating")
	child.SetError(errors.New("boom"))
	child.End()
	span.End()

	AddBreadcrumb(ctx, "qa", "stage changed")
	CaptureMessage(ctx, "noop")
}

func TestSpan_NilInner(t *testing.T) {
	s := &Span{}
	s.End()
	s.SetStage("citing")
	s.SetError(errors.New("x"))
	assert.NotNil(t, s.Context())
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		err        error
		status     sentry.SpanStatus
		reportable bool
	}{
		{nil, sentry.SpanStatusOK, false},
		{domain.ErrDocumentNotFound, sentry.SpanStatusNotFound, false},
		{fmt.Errorf("load: %w", domain.ErrAnalysisNotFound), sentry.SpanStatusNotFound, false},
		{domain.ErrConversationAlreadyExists, sentry.SpanStatusAlreadyExists, false},
		{domain.ErrMissingRequiredField, sentry.SpanStatusInvalidArgument, false},
		{domain.ErrGenerationFailure, sentry.SpanStatusUnavailable, true},
		{domain.ErrEmbeddingFailure, sentry.SpanStatusUnavailable, true},
		{domain.ErrMalformedVector, sentry.SpanStatusInternalError, true},
		{context.Canceled, sentry.SpanStatusCanceled, false},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), sentry.SpanStatusDeadlineExceeded, true},
		{errors.New("connection reset"), sentry.SpanStatusInternalError, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, SpanStatus(tt.err), "%v", tt.err)
		assert.Equal(t, tt.reportable, Reportable(tt.err), "%v", tt.err)
	}
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{
		Headers: map[string]string{"X-User-Id": "alice", "Accept": "application/json", "Authorization": "Bearer t"},
		Cookies: "session=1",
	}}

	out := scrubEvent(event, nil)
	assert.NotContains(t, out.Request.Headers, "X-User-Id")
	assert.NotContains(t, out.Request.Headers, "Authorization")
	assert.Equal(t, "application/json", out.Request.Headers["Accept"])
	assert.Empty(t, out.Request.Cookies)

	assert.NotNil(t, scrubEvent(&sentry.Event{}, nil))
}

func TestSampler(t *testing.T) {
	s := sampler(0.25)
	assert.Equal(t, 0.25, s(sentry.SamplingContext{}))

	health := &sentry.Span{Name: "GET /health"}
	assert.Equal(t, 0.0, s(sentry.SamplingContext{Span: health}))

	ask := &sentry.Span{Name: "POST /documents/{id}/questions"}
	assert.Equal(t, 0.25, s(sentry.SamplingContext{Span: ask}))
}

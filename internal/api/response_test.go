package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "invalid input", result.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"document not found", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"analysis not found", domain.ErrAnalysisNotFound, http.StatusNotFound},
		{"conversation exists", domain.ErrConversationAlreadyExists, http.StatusConflict},
		{"embedding failure", domain.ErrEmbeddingFailure.Wrap(errors.New("quota")), http.StatusBadGateway},
		{"generation failure", domain.ErrGenerationFailure, http.StatusBadGateway},
		{"validation", domain.ErrMissingRequiredField, http.StatusBadRequest},
		{"malformed stored vector", fmt.Errorf("retrieving: %w", domain.ErrMalformedVector), http.StatusInternalServerError},
		{"code only", domain.NewDomainError(domain.ErrCodeNotFound, domain.KindNone, "gone"), http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"cancelled", fmt.Errorf("indexing cancelled: %w", context.Canceled), StatusClientClosedRequest},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleStageError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleStageError(w, fmt.Errorf("generating: %w", domain.ErrGenerationFailure.Wrap(errors.New("secret upstream detail"))), "generating")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "answer generation failed", result.Error)
	assert.Equal(t, string(domain.KindGenerationFailure), result.Code)
	assert.Equal(t, "generating", result.Stage)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestHandleError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

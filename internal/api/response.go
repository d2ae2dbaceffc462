package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Stage string `json:"stage,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// StatusClientClosedRequest is reported when the caller went away mid-request
const StatusClientClosedRequest = 499

// DomainErrorToHTTP maps domain errors to HTTP status codes. The error kind
// decides where one is set, the broader code otherwise.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Kind {
	case domain.KindDocumentNotFound, domain.KindAnalysisNotFound, domain.KindConversationNotFound:
		return http.StatusNotFound
	case domain.KindConversationExists:
		return http.StatusConflict
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindEmbeddingFailure, domain.KindGenerationFailure:
		return http.StatusBadGateway
	case domain.KindMalformedVector:
		// stored data is broken, not the request
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists:
		return http.StatusConflict
	case domain.ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Errors outside the domain are reported without their details.
func HandleError(w http.ResponseWriter, err error) {
	HandleStageError(w, err, "")
}

// HandleStageError is HandleError for pipeline failures, naming the stage
// that failed.
func HandleStageError(w http.ResponseWriter, err error, stage string) {
	status := DomainErrorToHTTP(err)
	resp := ErrorResponse{Error: http.StatusText(status), Stage: stage}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Error = domainErr.Message
		resp.Code = string(domainErr.Kind)
	} else if status == StatusClientClosedRequest {
		resp.Error = "request cancelled"
	}

	JSON(w, status, resp)
}

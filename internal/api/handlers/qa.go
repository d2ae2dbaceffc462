package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

type QAService interface {
	AskQuestion(ctx context.Context, input service.AskInput) (*service.QAResponse, error)
	IndexDocument(ctx context.Context, documentID string) (*service.IndexReport, error)
	PurgeDocument(ctx context.Context, documentID string) (*service.PurgeReport, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, input service.ListConversationsInput) (*pagination.PageResult[*domain.ConversationSummary], error)
	SuggestQuestions(ctx context.Context, documentID string) ([]string, error)
}

type QAHandler struct {
	svc QAService
}

func NewQAHandler(svc QAService) *QAHandler {
	return &QAHandler{svc: svc}
}

type AskRequest struct {
	Question          string `json:"question"`
	ConversationID    string `json:"conversationId,omitempty"`
	StartConversation bool   `json:"startConversation,omitempty"`
}

type MessageResponse struct {
	ID        string                  `json:"id"`
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	Timestamp string                  `json:"timestamp"`
	Sources   []domain.SourceCitation `json:"sources,omitempty"`
}

type ConversationResponse struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	Messages   []MessageResponse `json:"messages"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
}

type SuggestionsResponse struct {
	Questions []string `json:"questions"`
}

func conversationToResponse(c *domain.Conversation) *ConversationResponse {
	resp := &ConversationResponse{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Messages:   make([]MessageResponse, 0, len(c.Messages)),
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, m := range c.Messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
			Sources:   m.Sources,
		})
	}
	return resp
}

func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.StartConversation && req.ConversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversationId is required when startConversation is set")
		return
	}

	resp, err := h.svc.AskQuestion(r.Context(), service.AskInput{
		DocumentID:        chi.URLParam(r, "documentID"),
		UserID:            userID,
		Question:          req.Question,
		ConversationID:    req.ConversationID,
		StartConversation: req.StartConversation,
	})
	if err != nil {
		stage := service.FailedStage(err)
		logging.From(r.Context()).Warn("question failed", "stage", string(stage), "error", err)
		api.HandleStageError(w, err, string(stage))
		return
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *QAHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	page, err := h.svc.ListConversations(r.Context(), service.ListConversationsInput{
		DocumentID: chi.URLParam(r, "documentID"),
		UserID:     userID,
		Cursor:     r.URL.Query().Get("cursor"),
		Limit:      limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, page)
}

func (h *QAHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conv, err := h.svc.GetConversation(r.Context(), chi.URLParam(r, "conversationID"), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(conv))
}

func (h *QAHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.SuggestQuestions(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SuggestionsResponse{Questions: questions})
}

func (h *QAHandler) Index(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.IndexDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}

func (h *QAHandler) Purge(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.PurgeDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}

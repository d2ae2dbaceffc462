package memstore

import (
	"context"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// DocumentStore keeps documents and analyses in memory
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	analyses  map[string]*domain.Analysis
}

// NewDocumentStore creates an empty DocumentStore
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*domain.Document),
		analyses:  make(map[string]*domain.Analysis),
	}
}

// AddDocument stores a document without analysis
func (s *DocumentStore) AddDocument(doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *doc
	s.documents[doc.ID] = &d
	return nil
}

// AddAnalysis stores a completed analysis for a known document
func (s *DocumentStore) AddAnalysis(analysis *domain.Analysis) error {
	if err := domain.ValidateAnalysis(analysis); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[analysis.DocumentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	a := *analysis
	a.Passages = append([]domain.Passage(nil), analysis.Passages...)
	s.analyses[analysis.DocumentID] = &a
	return nil
}

// GetDocument returns the document or domain.ErrDocumentNotFound
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	d := *doc
	return &d, nil
}

// GetAnalysis returns the analysis, domain.ErrDocumentNotFound for an unknown
// document and domain.ErrAnalysisNotFound when it was never analyzed.
func (s *DocumentStore) GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, domain.ErrDocumentNotFound
	}
	a, ok := s.analyses[documentID]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	out := *a
	out.Passages = append([]domain.Passage(nil), a.Passages...)
	return &out, nil
}

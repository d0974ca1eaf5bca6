package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a process-local Store used for development and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	inquiries []Inquiry
	faqs      []FAQ
	requests  map[string]ServiceRequest
	now       func() time.Time
}

// NewInMemoryStore creates an empty store seeded with faqs.
func NewInMemoryStore(faqs ...FAQ) *InMemoryStore {
	return &InMemoryStore{
		faqs:     append([]FAQ(nil), faqs...),
		requests: make(map[string]ServiceRequest),
		now:      time.Now,
	}
}

// LogInquiry appends an inquiry.
func (s *InMemoryStore) LogInquiry(ctx context.Context, message, response string) (*Inquiry, error) {
	inq := Inquiry{ID: uuid.New().String(), Message: message, Response: response}
	s.mu.Lock()
	s.inquiries = append(s.inquiries, inq)
	s.mu.Unlock()
	return &inq, nil
}

// Inquiries returns a copy of every logged inquiry in insertion order.
func (s *InMemoryStore) Inquiries() []Inquiry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Inquiry(nil), s.inquiries...)
}

// ListFAQs returns the seeded FAQs.
func (s *InMemoryStore) ListFAQs(ctx context.Context) ([]FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FAQ(nil), s.faqs...), nil
}

// CreateServiceRequest stores req under a fresh id.
func (s *InMemoryStore) CreateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	created := req
	created.ID = uuid.New().String()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.requests[created.ID] = created
	s.mu.Unlock()
	return &created, nil
}

// UpdateServiceRequest replaces an existing request.
func (s *InMemoryStore) UpdateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.requests[req.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.ID)
	}
	updated := req
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = existing.CreatedAt
	}
	now := s.now().UTC()
	updated.UpdatedAt = &now
	s.requests[req.ID] = updated
	return &updated, nil
}

// ListServiceRequests returns every request, newest first.
func (s *InMemoryStore) ListServiceRequests(ctx context.Context) ([]ServiceRequest, error) {
	s.mu.RLock()
	out := make([]ServiceRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetServiceRequest returns the request with id.
func (s *InMemoryStore) GetServiceRequest(ctx context.Context, id string) (*ServiceRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &req, nil
}

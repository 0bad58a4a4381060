package repository

import (
	"context"
	"sync"
	"time"

	"boothnik/internal/models"
)

// MemoryProposalStore is the Redis-free fallback used in tests and
// single-process deployments.
type MemoryProposalStore struct {
	mu        sync.Mutex
	proposals map[string]memoryProposal
}

type memoryProposal struct {
	proposal  models.Proposal
	expiresAt time.Time
}

func NewMemoryProposalStore() *MemoryProposalStore {
	return &MemoryProposalStore{proposals: make(map[string]memoryProposal)}
}

func (s *MemoryProposalStore) Put(ctx context.Context, p *models.Proposal, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.Token] = memoryProposal{proposal: *p, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryProposalStore) Get(ctx context.Context, token string) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.proposals[token]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.proposals, token)
		return nil, ErrProposalNotFound
	}
	p := entry.proposal
	return &p, nil
}

func (s *MemoryProposalStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proposals, token)
	return nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.ChallengeStore = (*ChallengeStore)(nil)

type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]model.AuthChallenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{challenges: make(map[uuid.UUID]model.AuthChallenge)}
}

func (s *ChallengeStore) Create(_ context.Context, challenge model.AuthChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ID] = challenge
	return nil
}

func (s *ChallengeStore) GetByID(_ context.Context, id uuid.UUID) (model.AuthChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return model.AuthChallenge{}, model.ErrNotFound
	}
	return c, nil
}

func (s *ChallengeStore) Complete(_ context.Context, id uuid.UUID, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.Consumed {
		return model.ErrNotFound
	}
	c.Consumed = true
	c.SessionKey = sessionKey
	s.challenges[id] = c
	return nil
}

func (s *ChallengeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.challenges {
		if c.ExpiresAt.Before(now) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

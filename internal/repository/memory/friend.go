package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.FriendStore = (*FriendStore)(nil)

type FriendStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]model.FriendRequest
}

func NewFriendStore() *FriendStore {
	return &FriendStore{requests: make(map[uuid.UUID]model.FriendRequest)}
}

func (s *FriendStore) Create(_ context.Context, request model.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if samePair(r, request.SenderID, request.RecipientID) {
			return model.ErrInvalidArgument
		}
	}
	s.requests[request.ID] = request
	return nil
}

func (s *FriendStore) GetByID(_ context.Context, id uuid.UUID) (model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return model.FriendRequest{}, model.ErrNotFound
	}
	return r, nil
}

func (s *FriendStore) GetByPair(_ context.Context, a, b uuid.UUID) (model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if samePair(r, a, b) {
			return r, nil
		}
	}
	return model.FriendRequest{}, model.ErrNotFound
}

func (s *FriendStore) ListIncoming(_ context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	return s.list(func(r model.FriendRequest) bool {
		return r.RecipientID == userID && r.Status == model.FriendStatusPending
	})
}

func (s *FriendStore) ListOutgoing(_ context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	return s.list(func(r model.FriendRequest) bool {
		return r.SenderID == userID && r.Status == model.FriendStatusPending
	})
}

func (s *FriendStore) ListAccepted(_ context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	return s.list(func(r model.FriendRequest) bool {
		return (r.SenderID == userID || r.RecipientID == userID) && r.Status == model.FriendStatusAccepted
	})
}

func (s *FriendStore) list(match func(model.FriendRequest) bool) ([]model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.FriendRequest
	for _, r := range s.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FriendStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.FriendStatus) (model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return model.FriendRequest{}, model.ErrNotFound
	}
	if r.Status != from {
		return model.FriendRequest{}, model.ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	s.requests[id] = r
	return r, nil
}

func (s *FriendStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *FriendStore) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if samePair(r, a, b) && r.Status == model.FriendStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func samePair(r model.FriendRequest, a, b uuid.UUID) bool {
	return (r.SenderID == a && r.RecipientID == b) || (r.SenderID == b && r.RecipientID == a)
}

package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.InviteStore = (*InviteStore)(nil)

type InviteStore struct {
	mu      sync.Mutex
	invites map[uuid.UUID]model.Invite
	pending map[uuid.UUID][]model.PendingInviteGrant
	grants  *GrantStore
}

func NewInviteStore(grants *GrantStore) *InviteStore {
	return &InviteStore{
		invites: make(map[uuid.UUID]model.Invite),
		pending: make(map[uuid.UUID][]model.PendingInviteGrant),
		grants:  grants,
	}
}

func (s *InviteStore) Create(_ context.Context, invite model.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[invite.ID] = invite
	return nil
}

func (s *InviteStore) GetByID(_ context.Context, id uuid.UUID) (model.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return model.Invite{}, model.ErrNotFound
	}
	return inv, nil
}

func (s *InviteStore) CreateGrant(_ context.Context, grant model.PendingInviteGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[grant.InviteID]; !ok {
		return model.ErrNotFound
	}
	for _, existing := range s.pending[grant.InviteID] {
		if existing.RecordID == grant.RecordID {
			return model.ErrInvalidArgument
		}
	}
	s.pending[grant.InviteID] = append(s.pending[grant.InviteID], grant)
	return nil
}

func (s *InviteStore) ListGrants(_ context.Context, inviteID uuid.UUID) ([]model.PendingInviteGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PendingInviteGrant, len(s.pending[inviteID]))
	copy(out, s.pending[inviteID])
	return out, nil
}

func (s *InviteStore) Redeem(ctx context.Context, inviteID uuid.UUID, grants []model.AccessGrant) error {
	s.mu.Lock()
	inv, ok := s.invites[inviteID]
	if !ok || inv.Consumed {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	inv.Consumed = true
	s.invites[inviteID] = inv
	delete(s.pending, inviteID)
	s.mu.Unlock()

	for _, grant := range grants {
		if err := s.grants.Create(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.GrantStore = (*GrantStore)(nil)

type grantKey struct {
	recordID uuid.UUID
	userID   uuid.UUID
}

type GrantStore struct {
	mu      sync.Mutex
	grants  map[grantKey]model.AccessGrant
	records *RecordStore
}

func NewGrantStore() *GrantStore {
	return &GrantStore{grants: make(map[grantKey]model.AccessGrant)}
}

// BindRecords wires the record store rotations write through to. Called once
// at setup; NewRecordStore needs the grant store first.
func (s *GrantStore) BindRecords(records *RecordStore) {
	s.records = records
}

func (s *GrantStore) Create(_ context.Context, grant model.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := grantKey{grant.RecordID, grant.UserID}
	if _, ok := s.grants[k]; ok {
		return model.ErrInvalidArgument
	}
	if grant.Version == 0 {
		grant.Version = 1
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now()
	}
	grant.UpdatedAt = grant.CreatedAt
	s.grants[k] = grant
	return nil
}

func (s *GrantStore) Get(_ context.Context, recordID, userID uuid.UUID) (model.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantKey{recordID, userID}]
	if !ok {
		return model.AccessGrant{}, model.ErrNotFound
	}
	return g, nil
}

func (s *GrantStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]model.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AccessGrant
	for k, g := range s.grants {
		if k.recordID == recordID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *GrantStore) ListByUser(_ context.Context, userID uuid.UUID) ([]model.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AccessGrant
	for k, g := range s.grants {
		if k.userID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *GrantStore) UpdateStatus(_ context.Context, update model.GrantStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := grantKey{update.RecordID, update.UserID}
	g, ok := s.grants[k]
	if !ok {
		return model.ErrNotFound
	}
	if g.Status != update.From {
		return model.ErrInvalidTransition
	}
	g.Status = update.To
	g.CredentialsKey = update.CredentialsKey
	g.OfferedKey = update.OfferedKey
	g.Version++
	g.UpdatedAt = time.Now()
	s.grants[k] = g
	return nil
}

func (s *GrantStore) Delete(_ context.Context, recordID, userID uuid.UUID) (model.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := grantKey{recordID, userID}
	g, ok := s.grants[k]
	if !ok {
		return model.AccessGrant{}, model.ErrNotFound
	}
	delete(s.grants, k)
	return g, nil
}

func (s *GrantStore) Rotate(_ context.Context, recordID uuid.UUID, rotation model.RecordRotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[uuid.UUID]grantKey)
	for k := range s.grants {
		if k.recordID == recordID {
			current[k.userID] = k
		}
	}
	if len(current) != len(rotation.Keys) {
		return model.ErrInvalidTransition
	}
	for _, key := range rotation.Keys {
		if _, ok := current[key.UserID]; !ok {
			return model.ErrInvalidTransition
		}
	}

	if s.records != nil {
		err := s.records.update(recordID, func(r *model.CredentialRecord) {
			r.Credentials = rotation.Credentials
			r.Preview = rotation.Preview
			r.BlobKey = rotation.BlobKey
			r.UpdatedAt = time.Now()
		})
		if err != nil {
			return err
		}
	}

	for _, key := range rotation.Keys {
		k := current[key.UserID]
		g := s.grants[k]
		g.PreviewKey = key.PreviewKey
		g.CredentialsKey = key.CredentialsKey
		g.Version++
		g.UpdatedAt = time.Now()
		s.grants[k] = g
	}
	return nil
}

func (s *GrantStore) dropRecord(recordID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.grants {
		if k.recordID == recordID {
			delete(s.grants, k)
		}
	}
}

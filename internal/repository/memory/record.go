package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.RecordStore = (*RecordStore)(nil)

// RecordStore shares a grant store so Create can insert the record and its
// manager grant together, the way the SQL implementation does in one
// transaction.
type RecordStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]model.CredentialRecord
	grants  *GrantStore
}

func NewRecordStore(grants *GrantStore) *RecordStore {
	return &RecordStore{
		records: make(map[uuid.UUID]model.CredentialRecord),
		grants:  grants,
	}
}

func (s *RecordStore) Create(ctx context.Context, record model.CredentialRecord, managerGrant model.AccessGrant) (model.CredentialRecord, error) {
	s.mu.Lock()
	if _, ok := s.records[record.ID]; ok {
		s.mu.Unlock()
		return model.CredentialRecord{}, model.ErrInvalidArgument
	}
	s.records[record.ID] = record
	s.mu.Unlock()

	// Grant store locking happens outside the record lock; rotation takes
	// the two locks in the opposite order.
	if err := s.grants.Create(ctx, managerGrant); err != nil {
		s.mu.Lock()
		delete(s.records, record.ID)
		s.mu.Unlock()
		return model.CredentialRecord{}, err
	}
	return record, nil
}

func (s *RecordStore) GetByID(_ context.Context, id uuid.UUID) (model.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return model.CredentialRecord{}, model.ErrNotFound
	}
	return r, nil
}

func (s *RecordStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.records[id]; !ok {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	delete(s.records, id)
	s.mu.Unlock()

	s.grants.dropRecord(id)
	return nil
}

// update is used by GrantStore.Rotate to swap record ciphertexts.
func (s *RecordStore) update(id uuid.UUID, fn func(*model.CredentialRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return model.ErrNotFound
	}
	fn(&r)
	s.records[id] = r
	return nil
}

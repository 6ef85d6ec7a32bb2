package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
)

// DefaultBlobThreshold is the inline size limit for credential ciphertexts.
// Larger payloads (browser-state captures) spill to blob storage; the
// decision is by size only, payload contents stay opaque.
const DefaultBlobThreshold = 64 * 1024

// Record manages credential records: opaque encrypted payloads plus the
// per-recipient wrapped copies of their data keys.
type Record struct {
	records       model.RecordStore
	grants        model.GrantStore
	storage       model.Storage
	blobThreshold int
	logger        *logger.Logger
}

func NewRecord(
	records model.RecordStore,
	grants model.GrantStore,
	storage model.Storage,
	blobThreshold int,
	logger *logger.Logger,
) *Record {
	if blobThreshold <= 0 {
		blobThreshold = DefaultBlobThreshold
	}
	return &Record{
		records:       records,
		grants:        grants,
		storage:       storage,
		blobThreshold: blobThreshold,
		logger:        logger,
	}
}

// CreateRecord stores a client-encrypted record and its manager grant
// atomically. Credential and preview ciphertexts arrive encrypted under the
// same data key; the server only ever holds the wrapped copies.
func (s *Record) CreateRecord(ctx context.Context, managerID uuid.UUID, params model.CreateRecordParams) (model.CredentialRecord, error) {
	if err := params.Credentials.Validate(); err != nil {
		return model.CredentialRecord{}, err
	}
	if err := params.Preview.Validate(); err != nil {
		return model.CredentialRecord{}, err
	}
	if err := params.PreviewKey.Validate(); err != nil {
		return model.CredentialRecord{}, err
	}
	if err := params.CredentialsKey.Validate(); err != nil {
		return model.CredentialRecord{}, err
	}

	now := time.Now()
	record := model.CredentialRecord{
		ID:          uuid.New(),
		ManagerID:   managerID,
		Credentials: params.Credentials,
		Preview:     params.Preview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if len(params.Credentials.Data) > s.blobThreshold {
		key := blobKey(record.ID)
		if err := s.storage.Upload(ctx, key, bytes.NewReader(params.Credentials.Data)); err != nil {
			return model.CredentialRecord{}, fmt.Errorf("failed to upload payload: %w", err)
		}
		record.BlobKey = key
		record.Credentials.Data = nil
	}

	credentialsKey := params.CredentialsKey
	managerGrant := model.AccessGrant{
		RecordID:       record.ID,
		UserID:         managerID,
		Status:         model.GrantStatusManager,
		PreviewKey:     params.PreviewKey,
		CredentialsKey: &credentialsKey,
	}

	record, err := s.records.Create(ctx, record, managerGrant)
	if err != nil {
		if record.BlobKey != "" {
			if delErr := s.storage.Delete(ctx, record.BlobKey); delErr != nil {
				s.logger.Error("Record service: failed to delete orphaned blob",
					"blob_key", record.BlobKey,
					"error", delErr.Error())
			}
		}
		return model.CredentialRecord{}, fmt.Errorf("failed to create record: %w", err)
	}

	s.logger.Info("Record service: record created",
		"record_id", record.ID,
		"manager_id", managerID)
	return record, nil
}

// GetRecord returns the record as visible to the caller. Callers without the
// credentials key see only the preview ciphertext; the full payload is
// stripped. A caller with no grant at all gets ErrForbidden.
func (s *Record) GetRecord(ctx context.Context, callerID, recordID uuid.UUID) (model.RecordView, error) {
	grant, err := s.grants.Get(ctx, recordID, callerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.RecordView{}, model.ErrForbidden
	}
	if err != nil {
		return model.RecordView{}, fmt.Errorf("failed to get grant: %w", err)
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return model.RecordView{}, fmt.Errorf("failed to get record: %w", err)
	}

	if !grant.Status.HoldsCredentialsKey() {
		record.Credentials = envelope.Ciphertext{}
		record.BlobKey = ""
		return model.RecordView{Record: record, Grant: grant}, nil
	}

	if record.BlobKey != "" {
		data, err := s.downloadBlob(ctx, record.BlobKey)
		if err != nil {
			return model.RecordView{}, err
		}
		record.Credentials.Data = data
	}

	return model.RecordView{Record: record, Grant: grant}, nil
}

// ListRecords returns every record the caller holds a grant on, stripped to
// what each grant entitles the caller to see. Payload bodies are never
// inlined in listings.
func (s *Record) ListRecords(ctx context.Context, callerID uuid.UUID) ([]model.RecordView, error) {
	grants, err := s.grants.ListByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	views := make([]model.RecordView, 0, len(grants))
	for _, grant := range grants {
		record, err := s.records.GetByID(ctx, grant.RecordID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get record: %w", err)
		}
		record.Credentials = envelope.Ciphertext{}
		record.BlobKey = ""
		views = append(views, model.RecordView{Record: record, Grant: grant})
	}
	return views, nil
}

// DeleteRecord removes a record, its grants and any spilled payload. Manager
// only; this is the only way a manager grant goes away.
func (s *Record) DeleteRecord(ctx context.Context, callerID, recordID uuid.UUID) error {
	record, err := s.records.GetByID(ctx, recordID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if record.ManagerID != callerID {
		return model.ErrForbidden
	}

	if err := s.records.Delete(ctx, recordID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if record.BlobKey != "" {
		if err := s.storage.Delete(ctx, record.BlobKey); err != nil {
			s.logger.Error("Record service: failed to delete blob",
				"blob_key", record.BlobKey,
				"error", err.Error())
		}
	}

	s.logger.Info("Record service: record deleted",
		"record_id", recordID)
	return nil
}

// RotateRecordKey replaces the record's ciphertexts with versions under a
// fresh data key and installs the rewrapped keys for every remaining
// grantee, all in one atomic write. Required after revoking a grant that
// held the credentials key: the revoked party saw the old data key.
func (s *Record) RotateRecordKey(ctx context.Context, callerID, recordID uuid.UUID, rotation model.RecordRotation) error {
	if err := rotation.Credentials.Validate(); err != nil {
		return err
	}
	if err := rotation.Preview.Validate(); err != nil {
		return err
	}

	record, err := s.records.GetByID(ctx, recordID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if record.ManagerID != callerID {
		return model.ErrForbidden
	}

	grants, err := s.grants.ListByRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to list grants: %w", err)
	}
	if err := validateRotationCoverage(grants, rotation.Keys); err != nil {
		return err
	}

	rotation.BlobKey = ""
	if len(rotation.Credentials.Data) > s.blobThreshold {
		key := blobKey(recordID)
		if err := s.storage.Upload(ctx, key, bytes.NewReader(rotation.Credentials.Data)); err != nil {
			return fmt.Errorf("failed to upload payload: %w", err)
		}
		rotation.BlobKey = key
		rotation.Credentials.Data = nil
	} else if record.BlobKey != "" {
		// Payload shrank below the threshold; the old object goes away
		// after the rotation commits.
		defer func() {
			if err := s.storage.Delete(ctx, record.BlobKey); err != nil {
				s.logger.Error("Record service: failed to delete stale blob",
					"blob_key", record.BlobKey,
					"error", err.Error())
			}
		}()
	}

	if err := s.grants.Rotate(ctx, recordID, rotation); err != nil {
		return fmt.Errorf("failed to rotate record key: %w", err)
	}

	s.logger.Info("Record service: data key rotated",
		"record_id", recordID,
		"grantees", len(rotation.Keys))
	return nil
}

// validateRotationCoverage requires the rewrapped key set to cover every
// current grantee exactly once, with a credentials key exactly where the
// grant's status calls for one. A rotation that skipped a grantee would
// leave them unable to decrypt anything ever again.
func validateRotationCoverage(grants []model.AccessGrant, keys []model.GrantKeyUpdate) error {
	byUser := make(map[uuid.UUID]model.GrantKeyUpdate, len(keys))
	for _, k := range keys {
		if err := k.PreviewKey.Validate(); err != nil {
			return err
		}
		if k.CredentialsKey != nil {
			if err := k.CredentialsKey.Validate(); err != nil {
				return err
			}
		}
		if _, dup := byUser[k.UserID]; dup {
			return fmt.Errorf("%w: duplicate key for grantee %s", model.ErrInvalidArgument, k.UserID)
		}
		byUser[k.UserID] = k
	}

	for _, grant := range grants {
		k, ok := byUser[grant.UserID]
		if !ok {
			return fmt.Errorf("%w: rotation misses grantee %s", model.ErrInvalidArgument, grant.UserID)
		}
		if grant.Status.HoldsCredentialsKey() != (k.CredentialsKey != nil) {
			return fmt.Errorf("%w: credentials key mismatch for grantee %s", model.ErrInvalidArgument, grant.UserID)
		}
		delete(byUser, grant.UserID)
	}
	if len(byUser) != 0 {
		return fmt.Errorf("%w: rotation names unknown grantees", model.ErrInvalidArgument)
	}
	return nil
}

func (s *Record) downloadBlob(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download payload: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

func blobKey(recordID uuid.UUID) string {
	return "records/" + recordID.String()
}

package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/model"
)

type createAccountRequest struct {
	Email             string              `json:"email"`
	Handle            string              `json:"handle"`
	FullName          string              `json:"full_name"`
	Salt              string              `json:"salt"`
	Verifier          string              `json:"verifier"`
	PublicKey         []byte              `json:"public_key"`
	WrappedPrivateKey envelope.Ciphertext `json:"wrapped_private_key"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	FullName  string    `json:"full_name"`
	PublicKey []byte    `json:"public_key"`
}

func toUserResponse(u model.UserSummary) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Handle:    u.Handle,
		FullName:  u.FullName,
		PublicKey: u.PublicKey,
	}
}

type profileResponse struct {
	userResponse
	WrappedPrivateKey envelope.Ciphertext `json:"wrapped_private_key"`
}

type beginHandshakeRequest struct {
	Email        string `json:"email"`
	ClientPublic string `json:"client_public"`
}

type beginHandshakeResponse struct {
	ChallengeID  uuid.UUID `json:"challenge_id"`
	Salt         string    `json:"salt"`
	ServerPublic string    `json:"server_public"`
}

type finishHandshakeRequest struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	ClientProof string    `json:"client_proof"`
}

type finishHandshakeResponse struct {
	ServerProof  string `json:"server_proof"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	Salt              string              `json:"salt"`
	Verifier          string              `json:"verifier"`
	WrappedPrivateKey envelope.Ciphertext `json:"wrapped_private_key"`
}

type createRecordRequest struct {
	Credentials    envelope.Ciphertext `json:"credentials"`
	Preview        envelope.Ciphertext `json:"preview"`
	PreviewKey     envelope.WrappedKey `json:"preview_key"`
	CredentialsKey envelope.WrappedKey `json:"credentials_key"`
}

type grantResponse struct {
	RecordID       uuid.UUID            `json:"record_id"`
	UserID         uuid.UUID            `json:"user_id"`
	Status         model.GrantStatus    `json:"status"`
	PreviewKey     envelope.WrappedKey  `json:"preview_key"`
	CredentialsKey *envelope.WrappedKey `json:"credentials_key,omitempty"`
	OfferedKey     *envelope.WrappedKey `json:"offered_key,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func toGrantResponse(g model.AccessGrant) grantResponse {
	return grantResponse{
		RecordID:       g.RecordID,
		UserID:         g.UserID,
		Status:         g.Status,
		PreviewKey:     g.PreviewKey,
		CredentialsKey: g.CredentialsKey,
		OfferedKey:     g.OfferedKey,
		UpdatedAt:      g.UpdatedAt,
	}
}

type recordResponse struct {
	ID          uuid.UUID            `json:"id"`
	ManagerID   uuid.UUID            `json:"manager_id"`
	Preview     envelope.Ciphertext  `json:"preview"`
	Credentials *envelope.Ciphertext `json:"credentials,omitempty"`
	Grant       grantResponse        `json:"grant"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toRecordResponse(v model.RecordView) recordResponse {
	resp := recordResponse{
		ID:        v.Record.ID,
		ManagerID: v.Record.ManagerID,
		Preview:   v.Record.Preview,
		Grant:     toGrantResponse(v.Grant),
		CreatedAt: v.Record.CreatedAt,
		UpdatedAt: v.Record.UpdatedAt,
	}
	if len(v.Record.Credentials.Data) > 0 {
		credentials := v.Record.Credentials
		resp.Credentials = &credentials
	}
	return resp
}

type wrappedKeyRequest struct {
	PreviewKey     envelope.WrappedKey  `json:"preview_key"`
	CredentialsKey *envelope.WrappedKey `json:"credentials_key,omitempty"`
}

type rotationRequest struct {
	Credentials envelope.Ciphertext `json:"credentials"`
	Preview     envelope.Ciphertext `json:"preview"`
	Keys        []rotationKey       `json:"keys"`
}

type rotationKey struct {
	UserID         uuid.UUID            `json:"user_id"`
	PreviewKey     envelope.WrappedKey  `json:"preview_key"`
	CredentialsKey *envelope.WrappedKey `json:"credentials_key,omitempty"`
}

func (r rotationRequest) toModel() model.RecordRotation {
	keys := make([]model.GrantKeyUpdate, 0, len(r.Keys))
	for _, k := range r.Keys {
		keys = append(keys, model.GrantKeyUpdate{
			UserID:         k.UserID,
			PreviewKey:     k.PreviewKey,
			CredentialsKey: k.CredentialsKey,
		})
	}
	return model.RecordRotation{
		Credentials: r.Credentials,
		Preview:     r.Preview,
		Keys:        keys,
	}
}

type createInviteRequest struct {
	Nickname           string `json:"nickname"`
	EphemeralPublicKey []byte `json:"ephemeral_public_key"`
}

type inviteResponse struct {
	ID                 uuid.UUID `json:"id"`
	InviterID          uuid.UUID `json:"inviter_id"`
	Nickname           string    `json:"nickname"`
	EphemeralPublicKey []byte    `json:"ephemeral_public_key"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func toInviteResponse(i model.Invite) inviteResponse {
	return inviteResponse{
		ID:                 i.ID,
		InviterID:          i.InviterID,
		Nickname:           i.Nickname,
		EphemeralPublicKey: i.EphemeralPublicKey,
		ExpiresAt:          i.ExpiresAt,
	}
}

type pendingInviteGrantResponse struct {
	RecordID   uuid.UUID            `json:"record_id"`
	Status     model.GrantStatus    `json:"status"`
	PreviewKey envelope.WrappedKey  `json:"preview_key"`
	OfferedKey *envelope.WrappedKey `json:"offered_key,omitempty"`
}

type redeemInviteRequest struct {
	Grants []rewrappedGrantRequest `json:"grants"`
}

type rewrappedGrantRequest struct {
	RecordID       uuid.UUID            `json:"record_id"`
	PreviewKey     envelope.WrappedKey  `json:"preview_key"`
	CredentialsKey *envelope.WrappedKey `json:"credentials_key,omitempty"`
}

type friendRequestResponse struct {
	ID     uuid.UUID          `json:"id"`
	Status model.FriendStatus `json:"status"`
	Peer   userResponse       `json:"peer"`
}

type sendFriendRequest struct {
	Handle string `json:"handle"`
}

type respondFriendRequest struct {
	Accept bool `json:"accept"`
}

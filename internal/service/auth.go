package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/srp"
)

// Auth runs the password-authenticated handshake and account lifecycle. It
// never sees a password or an unwrapped private key; it stores verifiers and
// checks proofs.
type Auth struct {
	users        model.UserStore
	challenges   model.ChallengeStore
	tokenService *TokenService
	decoySecret  []byte
	logger       *logger.Logger
}

func NewAuth(
	users model.UserStore,
	challenges model.ChallengeStore,
	refreshTokens model.RefreshTokenStore,
	tokenManager model.TokenManager,
	decoySecret []byte,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		users:        users,
		challenges:   challenges,
		tokenService: NewTokenService(tokenManager, refreshTokens, logger),
		decoySecret:  decoySecret,
		logger:       logger,
	}
}

// Tokens exposes the token service sharing this Auth's stores.
func (a *Auth) Tokens() *TokenService {
	return a.tokenService
}

// CreateAccount registers a user from client-derived material: salt,
// verifier, public key and the password-wrapped private key.
func (a *Auth) CreateAccount(ctx context.Context, params model.CreateAccountParams) (model.UserSummary, error) {
	params.Email = model.NormalizeEmail(params.Email)
	if err := params.ValidateAccount(); err != nil {
		return model.UserSummary{}, err
	}

	if _, err := a.users.GetByEmail(ctx, params.Email); err == nil {
		a.logger.Info("Auth service: signup against existing email")
		return model.UserSummary{}, model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.UserSummary{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if _, err := a.users.GetByHandle(ctx, params.Handle); err == nil {
		return model.UserSummary{}, model.ErrHandleTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.UserSummary{}, fmt.Errorf("failed to get user by handle: %w", err)
	}

	now := time.Now()
	user := model.User{
		ID:          uuid.New(),
		Email:       params.Email,
		Handle:      params.Handle,
		FullName:    params.FullName,
		SRPSalt:     params.Salt,
		SRPVerifier: params.Verifier,
		PublicKey:   params.PublicKey,
		PrivateKey:  params.WrappedPrivateKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	user, err := a.users.Create(ctx, user)
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"error", err.Error())
		return model.UserSummary{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: account created",
		"user_id", user.ID)

	return user.Summary(), nil
}

// BeginHandshake starts a handshake for an email. An unknown email gets a
// stable decoy response with the same shape as a real one; the decoy
// challenge is never persisted, so finishing it fails the generic way.
func (a *Auth) BeginHandshake(ctx context.Context, email, clientPublic string) (model.HandshakeChallenge, error) {
	email = model.NormalizeEmail(email)

	if !srp.ValidPublic(clientPublic) {
		return model.HandshakeChallenge{}, fmt.Errorf("%w: malformed client ephemeral", model.ErrInvalidArgument)
	}

	user, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		id, salt, serverPublic := srp.Decoy(a.decoySecret, email)
		return model.HandshakeChallenge{
			ChallengeID:  id,
			Salt:         salt,
			ServerPublic: serverPublic,
		}, nil
	}
	if err != nil {
		return model.HandshakeChallenge{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	ephemeral, err := srp.ServerEphemeral(user.SRPVerifier)
	if err != nil {
		return model.HandshakeChallenge{}, fmt.Errorf("failed to generate server ephemeral: %w", err)
	}

	challenge := model.AuthChallenge{
		ID:           uuid.New(),
		UserID:       user.ID,
		ClientPublic: clientPublic,
		ServerPublic: ephemeral.Public,
		ServerSecret: ephemeral.Secret,
		ExpiresAt:    time.Now().Add(model.ChallengeTTL),
		CreatedAt:    time.Now(),
	}
	if err := a.challenges.Create(ctx, challenge); err != nil {
		return model.HandshakeChallenge{}, fmt.Errorf("failed to create challenge: %w", err)
	}

	a.logger.Debug("Auth service: handshake started",
		"challenge_id", challenge.ID)

	return model.HandshakeChallenge{
		ChallengeID:  challenge.ID,
		Salt:         user.SRPSalt,
		ServerPublic: ephemeral.Public,
	}, nil
}

// FinishHandshake verifies the client proof against the stored transcript
// and, on success, consumes the challenge, returns the server proof and
// issues session tokens. A missing, consumed or decoy challenge fails with
// ErrInvalidProof; nothing in the error reveals which factor failed.
func (a *Auth) FinishHandshake(ctx context.Context, challengeID uuid.UUID, clientProof string) (model.HandshakeResult, error) {
	challenge, err := a.challenges.GetByID(ctx, challengeID)
	if errors.Is(err, model.ErrNotFound) {
		return model.HandshakeResult{}, model.ErrInvalidProof
	}
	if err != nil {
		return model.HandshakeResult{}, fmt.Errorf("failed to get challenge: %w", err)
	}
	if challenge.Consumed {
		return model.HandshakeResult{}, model.ErrInvalidProof
	}
	if time.Now().After(challenge.ExpiresAt) {
		return model.HandshakeResult{}, model.ErrExpired
	}

	user, err := a.users.GetByID(ctx, challenge.UserID)
	if err != nil {
		return model.HandshakeResult{}, fmt.Errorf("failed to get challenge user: %w", err)
	}

	sessionKey, err := srp.ServerKey(user.SRPVerifier, challenge.ServerSecret, challenge.ClientPublic, challenge.ServerPublic)
	if err != nil {
		return model.HandshakeResult{}, model.ErrInvalidProof
	}

	expected, err := srp.ClientProof(user.Email, user.SRPSalt, challenge.ClientPublic, challenge.ServerPublic, sessionKey)
	if err != nil {
		return model.HandshakeResult{}, fmt.Errorf("failed to compute expected proof: %w", err)
	}
	if !srp.VerifyProof(expected, clientProof) {
		a.logger.Info("Auth service: proof mismatch",
			"challenge_id", challengeID)
		return model.HandshakeResult{}, model.ErrInvalidProof
	}

	// Single write: records the derived key and consumes the challenge. A
	// concurrent Finish on the same id loses here.
	if err := a.challenges.Complete(ctx, challengeID, sessionKey); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.HandshakeResult{}, model.ErrInvalidProof
		}
		return model.HandshakeResult{}, fmt.Errorf("failed to consume challenge: %w", err)
	}

	serverProof, err := srp.ServerProof(challenge.ClientPublic, clientProof, sessionKey)
	if err != nil {
		return model.HandshakeResult{}, fmt.Errorf("failed to compute server proof: %w", err)
	}

	accessToken, refreshToken, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return model.HandshakeResult{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.logger.Info("Auth service: handshake completed",
		"user_id", user.ID,
		"challenge_id", challengeID)

	return model.HandshakeResult{
		ServerProof:  serverProof,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ChangePasswordParams carries the re-derived material for a password
// change: a fresh salt/verifier pair and the private key re-wrapped under
// the new master secret.
type ChangePasswordParams struct {
	Salt              string
	Verifier          string
	WrappedPrivateKey envelope.Ciphertext
}

// ChangePassword re-issues the verifier and replaces the wrapped private key
// in one write, then revokes every outstanding session.
func (a *Auth) ChangePassword(ctx context.Context, userID uuid.UUID, params ChangePasswordParams) error {
	if !model.ValidHex(params.Salt, srp.SaltHexLen) {
		return fmt.Errorf("%w: malformed salt", model.ErrInvalidArgument)
	}
	if !model.ValidHex(params.Verifier, srp.GroupHexLen) {
		return fmt.Errorf("%w: malformed verifier", model.ErrInvalidArgument)
	}
	if err := params.WrappedPrivateKey.Validate(); err != nil {
		return err
	}
	if len(params.WrappedPrivateKey.Salt) == 0 {
		return fmt.Errorf("%w: wrapped private key must carry a key-derivation salt", envelope.ErrMalformedCiphertext)
	}

	if err := a.users.UpdateCredentials(ctx, userID, params.Salt, params.Verifier, params.WrappedPrivateKey); err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}

	if err := a.tokenService.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	a.logger.Info("Auth service: password changed",
		"user_id", userID)
	return nil
}

// GetUser returns the caller's own identity record, wrapped private key
// included so the client can unwrap it locally.
func (a *Auth) GetUser(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// SweepChallenges deletes expired handshake transcripts. Intended for an
// external scheduler, never the request path.
func (a *Auth) SweepChallenges(ctx context.Context) (int64, error) {
	return a.challenges.DeleteExpired(ctx, time.Now())
}

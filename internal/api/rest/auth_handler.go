package rest

import (
	"net/http"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/service"
)

type AuthHandler struct {
	auth   *service.Auth
	logger *logger.Logger
}

func NewAuthHandler(auth *service.Auth, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.auth.CreateAccount(r.Context(), model.CreateAccountParams{
		Email:             req.Email,
		Handle:            req.Handle,
		FullName:          req.FullName,
		Salt:              req.Salt,
		Verifier:          req.Verifier,
		PublicKey:         req.PublicKey,
		WrappedPrivateKey: req.WrappedPrivateKey,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(summary))
}

func (h *AuthHandler) BeginHandshake(w http.ResponseWriter, r *http.Request) {
	var req beginHandshakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	challenge, err := h.auth.BeginHandshake(r.Context(), req.Email, req.ClientPublic)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, beginHandshakeResponse{
		ChallengeID:  challenge.ChallengeID,
		Salt:         challenge.Salt,
		ServerPublic: challenge.ServerPublic,
	})
}

func (h *AuthHandler) FinishHandshake(w http.ResponseWriter, r *http.Request) {
	var req finishHandshakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.FinishHandshake(r.Context(), req.ChallengeID, req.ClientProof)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, finishHandshakeResponse{
		ServerProof:  result.ServerProof,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, refresh, err := h.auth.Tokens().Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.Tokens().RevokeByToken(r.Context(), req.RefreshToken); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		userResponse:      toUserResponse(user.Summary()),
		WrappedPrivateKey: user.PrivateKey,
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.auth.ChangePassword(r.Context(), userID, service.ChangePasswordParams{
		Salt:              req.Salt,
		Verifier:          req.Verifier,
		WrappedPrivateKey: req.WrappedPrivateKey,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

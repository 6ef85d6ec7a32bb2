package rest

import (
	"net/http"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/service"
)

type InviteHandler struct {
	invites *service.Invite
	logger  *logger.Logger
}

func NewInviteHandler(invites *service.Invite, logger *logger.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, logger: logger}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req createInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	invite, err := h.invites.CreateInvite(r.Context(), userID, req.Nickname, req.EphemeralPublicKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInviteResponse(invite))
}

func (h *InviteHandler) AddGrant(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	inviteID, ok := pathID(w, r, "inviteID")
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	var req wrappedKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.invites.GrantToInvite(r.Context(), userID, recordID, inviteID, req.PreviewKey, req.CredentialsKey); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Grants is unauthenticated: holding the invite link is the capability.
func (h *InviteHandler) Grants(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := pathID(w, r, "inviteID")
	if !ok {
		return
	}

	invite, pending, err := h.invites.InviteGrants(r.Context(), inviteID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	grants := make([]pendingInviteGrantResponse, 0, len(pending))
	for _, g := range pending {
		grants = append(grants, pendingInviteGrantResponse{
			RecordID:   g.RecordID,
			Status:     g.Status,
			PreviewKey: g.PreviewKey,
			OfferedKey: g.OfferedKey,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Invite inviteResponse               `json:"invite"`
		Grants []pendingInviteGrantResponse `json:"grants"`
	}{
		Invite: toInviteResponse(invite),
		Grants: grants,
	})
}

func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	inviteID, ok := pathID(w, r, "inviteID")
	if !ok {
		return
	}

	var req redeemInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rewrapped := make([]model.RewrappedInviteGrant, 0, len(req.Grants))
	for _, g := range req.Grants {
		rewrapped = append(rewrapped, model.RewrappedInviteGrant{
			RecordID:       g.RecordID,
			PreviewKey:     g.PreviewKey,
			CredentialsKey: g.CredentialsKey,
		})
	}

	grants, err := h.invites.RedeemInvite(r.Context(), userID, inviteID, rewrapped)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

package rest

import (
	"net/http"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/service"
)

type GrantHandler struct {
	grants *service.Grant
	logger *logger.Logger
}

func NewGrantHandler(grants *service.Grant, logger *logger.Logger) *GrantHandler {
	return &GrantHandler{grants: grants, logger: logger}
}

func (h *GrantHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req wrappedKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.grants.GrantPreview(r.Context(), userID, recordID, recipientID, req.PreviewKey); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) Offer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req wrappedKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CredentialsKey == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "credentials_key is required"})
		return
	}

	if err := h.grants.OfferAccess(r.Context(), userID, recordID, recipientID, req.PreviewKey, *req.CredentialsKey); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) Request(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	if err := h.grants.RequestAccess(r.Context(), userID, recordID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req wrappedKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CredentialsKey == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "credentials_key is required"})
		return
	}

	if err := h.grants.ApproveAccess(r.Context(), userID, recordID, recipientID, *req.CredentialsKey); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) Deny(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.grants.DenyAccess(r.Context(), userID, recordID, recipientID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	if err := h.grants.AcceptOffer(r.Context(), userID, recordID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	if err := h.grants.RejectOffer(r.Context(), userID, recordID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	rotationRequired, err := h.grants.RevokeAccess(r.Context(), userID, recordID, recipientID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"rotation_required": rotationRequired})
}

func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	grants, err := h.grants.ListGrants(r.Context(), userID, recordID)
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

package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/service"
)

type FriendHandler struct {
	friends *service.Friend
	logger  *logger.Logger
}

func NewFriendHandler(friends *service.Friend, logger *logger.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, logger: logger}
}

func (h *FriendHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req sendFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	request, err := h.friends.SendRequest(r.Context(), userID, req.Handle)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     request.ID,
		"status": request.Status,
	})
}

func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	var req respondFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.friends.Respond(r.Context(), userID, requestID, req.Accept)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     updated.ID,
		"status": updated.Status,
	})
}

func (h *FriendHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.friends.ListIncoming)
}

func (h *FriendHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.friends.ListOutgoing)
}

func (h *FriendHandler) listRequests(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID) ([]model.FriendRequestView, error)) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	views, err := list(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]friendRequestResponse, 0, len(views))
	for _, v := range views {
		out = append(out, friendRequestResponse{
			ID:     v.Request.ID,
			Status: v.Request.Status,
			Peer:   toUserResponse(v.Peer),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FriendHandler) Friends(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	friends, err := h.friends.ListFriends(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userResponse, 0, len(friends))
	for _, f := range friends {
		out = append(out, toUserResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

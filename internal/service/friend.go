package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
)

// Friend maintains the trust graph that gates direct sharing. An accepted
// request in either direction makes two users mutual trusted peers.
type Friend struct {
	friends model.FriendStore
	users   model.UserStore
	logger  *logger.Logger
}

func NewFriend(friends model.FriendStore, users model.UserStore, logger *logger.Logger) *Friend {
	return &Friend{
		friends: friends,
		users:   users,
		logger:  logger,
	}
}

// SendRequest creates a pending friend request addressed by handle.
// Self-requests and duplicate edges in either direction are rejected.
func (s *Friend) SendRequest(ctx context.Context, senderID uuid.UUID, recipientHandle string) (model.FriendRequest, error) {
	if err := model.ValidateHandle(recipientHandle); err != nil {
		return model.FriendRequest{}, err
	}

	recipient, err := s.users.GetByHandle(ctx, recipientHandle)
	if errors.Is(err, model.ErrNotFound) {
		return model.FriendRequest{}, model.ErrNotFound
	}
	if err != nil {
		return model.FriendRequest{}, fmt.Errorf("failed to get recipient: %w", err)
	}
	if recipient.ID == senderID {
		return model.FriendRequest{}, fmt.Errorf("%w: cannot befriend yourself", model.ErrInvalidArgument)
	}

	existing, err := s.friends.GetByPair(ctx, senderID, recipient.ID)
	if err == nil {
		// A rejected edge may be retried; pending and accepted may not.
		if existing.Status != model.FriendStatusRejected {
			return model.FriendRequest{}, fmt.Errorf("%w: request already exists", model.ErrInvalidTransition)
		}
		if err := s.friends.Delete(ctx, existing.ID); err != nil {
			return model.FriendRequest{}, fmt.Errorf("failed to clear rejected request: %w", err)
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.FriendRequest{}, fmt.Errorf("failed to check existing request: %w", err)
	}

	now := time.Now()
	request := model.FriendRequest{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Status:      model.FriendStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.friends.Create(ctx, request); err != nil {
		return model.FriendRequest{}, fmt.Errorf("failed to create friend request: %w", err)
	}

	s.logger.Info("Friend service: request sent",
		"request_id", request.ID,
		"sender_id", senderID,
		"recipient_id", recipient.ID)
	return request, nil
}

// Respond accepts or rejects a pending request. Only the recipient may
// respond, and only while the request is still pending.
func (s *Friend) Respond(ctx context.Context, callerID, requestID uuid.UUID, accept bool) (model.FriendRequest, error) {
	request, err := s.friends.GetByID(ctx, requestID)
	if errors.Is(err, model.ErrNotFound) {
		return model.FriendRequest{}, model.ErrNotFound
	}
	if err != nil {
		return model.FriendRequest{}, fmt.Errorf("failed to get friend request: %w", err)
	}
	if request.RecipientID != callerID {
		return model.FriendRequest{}, model.ErrForbidden
	}

	to := model.FriendStatusRejected
	if accept {
		to = model.FriendStatusAccepted
	}
	updated, err := s.friends.UpdateStatus(ctx, requestID, model.FriendStatusPending, to)
	if errors.Is(err, model.ErrInvalidTransition) {
		return model.FriendRequest{}, model.ErrInvalidTransition
	}
	if err != nil {
		return model.FriendRequest{}, fmt.Errorf("failed to update friend request: %w", err)
	}

	s.logger.Info("Friend service: request answered",
		"request_id", requestID,
		"status", updated.Status)
	return updated, nil
}

// ListIncoming returns pending requests addressed to the user, with sender
// summaries resolved for display.
func (s *Friend) ListIncoming(ctx context.Context, userID uuid.UUID) ([]model.FriendRequestView, error) {
	requests, err := s.friends.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	return s.resolveViews(ctx, requests, func(r model.FriendRequest) uuid.UUID { return r.SenderID })
}

// ListOutgoing returns requests the user has sent that are still pending.
func (s *Friend) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]model.FriendRequestView, error) {
	requests, err := s.friends.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing requests: %w", err)
	}
	return s.resolveViews(ctx, requests, func(r model.FriendRequest) uuid.UUID { return r.RecipientID })
}

// ListFriends returns summaries of every accepted peer.
func (s *Friend) ListFriends(ctx context.Context, userID uuid.UUID) ([]model.UserSummary, error) {
	accepted, err := s.friends.ListAccepted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	summaries := make([]model.UserSummary, 0, len(accepted))
	for _, r := range accepted {
		peerID := r.SenderID
		if peerID == userID {
			peerID = r.RecipientID
		}
		peer, err := s.users.GetByID(ctx, peerID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get peer: %w", err)
		}
		summaries = append(summaries, peer.Summary())
	}
	return summaries, nil
}

func (s *Friend) resolveViews(ctx context.Context, requests []model.FriendRequest, peer func(model.FriendRequest) uuid.UUID) ([]model.FriendRequestView, error) {
	views := make([]model.FriendRequestView, 0, len(requests))
	for _, r := range requests {
		u, err := s.users.GetByID(ctx, peer(r))
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get peer: %w", err)
		}
		views = append(views, model.FriendRequestView{
			Request: r,
			Peer:    u.Summary(),
		})
	}
	return views, nil
}

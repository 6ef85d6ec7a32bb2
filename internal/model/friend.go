package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FriendStatus is the closed set of states a friend request can be in.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusRejected FriendStatus = "rejected"
)

// FriendStore persists friend requests and the trust edges they become.
type FriendStore interface {
	Create(ctx context.Context, request FriendRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (FriendRequest, error)
	// GetByPair returns any request between the two users, in either
	// direction.
	GetByPair(ctx context.Context, a, b uuid.UUID) (FriendRequest, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]FriendRequest, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]FriendRequest, error)
	// ListAccepted returns every accepted edge touching the user, in either
	// direction.
	ListAccepted(ctx context.Context, userID uuid.UUID) ([]FriendRequest, error)
	// UpdateStatus is a compare-and-swap on the request status. It returns
	// the updated request, or ErrInvalidTransition when the swap loses.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to FriendStatus) (FriendRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AreFriends reports whether an accepted edge exists between the two
	// users in either direction.
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// FriendRequest is a directed trust request. On acceptance it is read as an
// undirected trust edge: either side may then be wrapped keys by the other.
type FriendRequest struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Status      FriendStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FriendRequestView pairs a request with the summary of the peer on the
// other end, resolved for display.
type FriendRequestView struct {
	Request FriendRequest
	Peer    UserSummary
}

package model

import "errors"

var (
	// ErrNotFound reports a missing or already-consumed entity.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken reports a signup against an email already associated
	// with an account. Callers must phrase this without confirming account
	// existence where avoidable.
	ErrEmailTaken = errors.New("email is already associated with an account")
	// ErrHandleTaken reports a signup against a taken handle.
	ErrHandleTaken = errors.New("handle is already taken")
	// ErrInvalidProof reports an authentication proof mismatch. Always
	// generic; never distinguishes the failing factor.
	ErrInvalidProof = errors.New("invalid proof")
	// ErrExpired reports a handshake or invite past its validity window.
	ErrExpired = errors.New("expired")
	// ErrForbidden reports a caller lacking the role a transition requires.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition reports a state change not legal from the current
	// state, including races where the state moved between read and write.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidArgument reports a request failing structural validation.
	ErrInvalidArgument = errors.New("invalid argument")
)

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

// EventHandler receives inbound transport events
type EventHandler func(ctx context.Context, event domain.Event)

// Transport is the messaging platform connection
type Transport interface {
	// Connect establishes an authorized session and starts delivering events to handler
	Connect(ctx context.Context, handler EventHandler) error

	// Run blocks until the transport reports disconnection
	Run(ctx context.Context) error

	// Disconnect closes the session
	Disconnect() error

	// SendMessage sends a message to a chat or account
	SendMessage(ctx context.Context, target int64, msg domain.OutgoingMessage) error

	// ResolveAccount resolves a public handle to an account
	ResolveAccount(ctx context.Context, handle string) (domain.AccountRef, error)

	// ListMemberships lists all chats the account is currently a member of
	ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error)

	// AnswerAction acknowledges an inline action to the user who pressed it
	AnswerAction(ctx context.Context, action domain.ActionEvent, text string) error
}

// TransportErrorKind classifies transport failures
type TransportErrorKind int

const (
	KindUnknown TransportErrorKind = iota
	KindFatal
	KindRateLimited
	KindNetwork
)

func (k TransportErrorKind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// FatalReason tells why a fatal failure happened
type FatalReason string

const (
	ReasonAuthInvalid          FatalReason = "auth_invalid"
	ReasonSecondFactorRequired FatalReason = "second_factor_required"
)

// TransportError is a classified transport failure
type TransportError struct {
	Kind   TransportErrorKind
	Reason FatalReason   // Set for KindFatal
	Wait   time.Duration // Set for KindRateLimited
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindFatal:
		return fmt.Sprintf("transport fatal (%s): %v", e.Reason, e.Err)
	case KindRateLimited:
		return fmt.Sprintf("transport rate limited for %s: %v", e.Wait, e.Err)
	default:
		return fmt.Sprintf("transport %s error: %v", e.Kind, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a fatal failure
func Fatal(reason FatalReason, err error) error {
	return &TransportError{Kind: KindFatal, Reason: reason, Err: err}
}

// RateLimited wraps err as a rate limit signal carrying the wait duration
func RateLimited(wait time.Duration, err error) error {
	return &TransportError{Kind: KindRateLimited, Wait: wait, Err: err}
}

// Network wraps err as a transient network failure
func Network(err error) error {
	return &TransportError{Kind: KindNetwork, Err: err}
}

// Classify extracts the transport error from err.
// Errors that are not a *TransportError classify as KindUnknown.
func Classify(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Kind: KindUnknown, Err: err}
}

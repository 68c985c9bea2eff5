package telegram

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
)

var (
	errNotAuthorized = errors.New("session is not authorized")
	errNotConnected  = errors.New("telegram client is not connected")
)

// RPC error types that mean the stored session can no longer be used
var authErrorTypes = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"AUTH_KEY_DUPLICATED",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
}

// classify tags err with its transport error kind.
// Errors that match no known class are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var te *repo.TransportError
	if errors.As(err, &te) {
		return err
	}

	if d, ok := tgerr.AsFloodWait(err); ok {
		return repo.RateLimited(d, err)
	}

	if errors.Is(err, auth.ErrPasswordAuthNeeded) || tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
		return repo.Fatal(repo.ReasonSecondFactorRequired, err)
	}
	if auth.IsUnauthorized(err) || tgerr.Is(err, authErrorTypes...) {
		return repo.Fatal(repo.ReasonAuthInvalid, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return repo.Network(err)
	}

	return err
}

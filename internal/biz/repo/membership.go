package repo

import (
	"context"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

// MembershipStore persists the list of serviced group IDs.
// Write must replace the whole list atomically.
type MembershipStore interface {
	Read(ctx context.Context) (domain.GroupSet, error)
	Write(ctx context.Context, groups domain.GroupSet) error
	Close() error
}

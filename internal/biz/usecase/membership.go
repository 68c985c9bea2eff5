package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
)

// ErrReconcile marks a failed reconciliation tick
var ErrReconcile = errors.New("reconciliation failed")

// MembershipLister lists the account's live chat memberships
type MembershipLister interface {
	ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error)
}

// MembershipConfig contains reconciliation settings
type MembershipConfig struct {
	Interval    time.Duration // Time between ticks
	SettleDelay time.Duration // Wait after a rewrite before reloading
}

// DefaultMembershipConfig returns default reconciliation settings
func DefaultMembershipConfig() MembershipConfig {
	return MembershipConfig{
		Interval:    15 * time.Second,
		SettleDelay: 3 * time.Second,
	}
}

// TickResult describes one reconciliation tick
type TickResult struct {
	Persisted domain.GroupSet
	Live      domain.GroupSet
	Diff      domain.MembershipDiff
	Updated   domain.GroupSet // Set only when Rewritten
	Rewritten bool
	Titles    map[int64]string
}

// MembershipUsecase diffs live memberships against the persisted list
type MembershipUsecase struct {
	store  repo.MembershipStore
	lister MembershipLister
	active *ActiveGroups
	config MembershipConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewMembershipUsecase creates a new membership usecase
func NewMembershipUsecase(
	store repo.MembershipStore,
	lister MembershipLister,
	active *ActiveGroups,
	config MembershipConfig,
	logger *zap.Logger,
) *MembershipUsecase {
	return &MembershipUsecase{
		store:  store,
		lister: lister,
		active: active,
		config: config,
		logger: logger.Named("membership"),
		sleep:  SleepContext,
	}
}

// Config returns the reconciliation settings
func (uc *MembershipUsecase) Config() MembershipConfig {
	return uc.config
}

// LiveGroups returns the IDs of all two-way chats the account is in
func (uc *MembershipUsecase) LiveGroups(ctx context.Context) (domain.GroupSet, map[int64]string, error) {
	memberships, err := uc.lister.ListMemberships(ctx)
	if err != nil {
		return nil, nil, err
	}

	live := make(domain.GroupSet)
	titles := make(map[int64]string)
	for _, m := range memberships {
		if !m.TwoWay() {
			continue
		}
		live[m.ID] = struct{}{}
		titles[m.ID] = m.Title
	}
	return live, titles, nil
}

// Tick runs one reconciliation: read, list, diff and, on change, rewrite and reload
func (uc *MembershipUsecase) Tick(ctx context.Context) (*TickResult, error) {
	persisted, err := uc.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read persisted groups: %v", ErrReconcile, err)
	}

	live, titles, err := uc.LiveGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list memberships: %v", ErrReconcile, err)
	}

	result := &TickResult{
		Persisted: persisted,
		Live:      live,
		Diff:      domain.DiffMemberships(persisted, live),
		Titles:    titles,
	}
	if result.Diff.Empty() {
		return result, nil
	}

	for _, id := range result.Diff.Joined.Sorted() {
		uc.logger.Info("joined group detected", zap.Int64("chat_id", id), zap.String("title", titles[id]))
	}
	for _, id := range result.Diff.Left.Sorted() {
		uc.logger.Info("left group detected", zap.Int64("chat_id", id))
	}

	updated := result.Diff.Apply(persisted)
	if err := uc.store.Write(ctx, updated); err != nil {
		return result, fmt.Errorf("%w: write groups: %v", ErrReconcile, err)
	}
	result.Updated = updated
	result.Rewritten = true
	uc.logger.Info("group list updated", zap.Int("groups", updated.Len()))

	if err := uc.sleep(ctx, uc.config.SettleDelay); err != nil {
		return result, err
	}
	if err := uc.Reload(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Reload replaces the active group set with the persisted list
func (uc *MembershipUsecase) Reload(ctx context.Context) error {
	groups, err := uc.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: reload groups: %v", ErrReconcile, err)
	}
	uc.active.Replace(groups)
	uc.logger.Info("active groups reloaded", zap.Int("groups", groups.Len()))
	return nil
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

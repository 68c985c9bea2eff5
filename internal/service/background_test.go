package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

type staticLister struct {
	memberships []domain.MembershipInfo
}

func (l *staticLister) ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error) {
	return l.memberships, nil
}

func TestReconcileLoop_AppliesJoins(t *testing.T) {
	store := &mockMembershipStore{groups: domain.NewGroupSet(groupA)}
	lister := &staticLister{memberships: []domain.MembershipInfo{
		{ID: groupA, Kind: domain.MembershipSupergroup},
		{ID: groupB, Kind: domain.MembershipBasicGroup},
		{ID: -1009, Kind: domain.MembershipBroadcast},
	}}
	active := usecase.NewActiveGroups(domain.NewGroupSet(groupA))
	uc := usecase.NewMembershipUsecase(store, lister, active,
		usecase.MembershipConfig{Interval: 10 * time.Millisecond}, zap.NewNop())
	loop := NewReconcileLoop(uc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return active.Contains(groupB) }, time.Second, 5*time.Millisecond)
	assert.False(t, active.Contains(-1009))

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, "reconcile", loop.Name())
}

func TestReconcileLoop_FailedTickDoesNotStopLoop(t *testing.T) {
	store := &mockMembershipStore{groups: domain.NewGroupSet(groupA), failReads: 2}
	lister := &staticLister{memberships: []domain.MembershipInfo{
		{ID: groupA, Kind: domain.MembershipSupergroup},
		{ID: groupB, Kind: domain.MembershipBasicGroup},
	}}
	active := usecase.NewActiveGroups(domain.NewGroupSet(groupA))
	uc := usecase.NewMembershipUsecase(store, lister, active,
		usecase.MembershipConfig{Interval: 10 * time.Millisecond}, zap.NewNop())
	loop := NewReconcileLoop(uc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return active.Contains(groupB) }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 1, store.writeCount())
}

type gatedLister struct {
	entered chan struct{}
	release chan struct{}
	live    []domain.MembershipInfo
}

func (l *gatedLister) ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error) {
	close(l.entered)
	<-l.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.live, nil
}

func TestReconcileLoop_CancelDuringTickLetsTickFinish(t *testing.T) {
	store := &mockMembershipStore{groups: domain.NewGroupSet(groupA)}
	lister := &gatedLister{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		live:    []domain.MembershipInfo{{ID: groupB, Kind: domain.MembershipBasicGroup}},
	}
	active := usecase.NewActiveGroups(domain.NewGroupSet(groupA))
	uc := usecase.NewMembershipUsecase(store, lister, active,
		usecase.MembershipConfig{Interval: 10 * time.Millisecond}, zap.NewNop())
	loop := NewReconcileLoop(uc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case <-lister.entered:
	case <-time.After(time.Second):
		t.Fatal("tick did not start")
	}
	cancel()
	close(lister.release)

	assert.NoError(t, <-done)
	assert.Equal(t, 1, store.writeCount())
	assert.True(t, active.Contains(groupB))
	assert.False(t, active.Contains(groupA))
}

func TestPendingSweeper_Sweep(t *testing.T) {
	pending := usecase.NewPendingTable()
	pending.Put("11111111111", groupA)
	sweeper := NewPendingSweeper(pending, time.Millisecond, time.Minute, zap.NewNop())

	time.Sleep(5 * time.Millisecond)
	pending.Put("22222222222", groupB)

	assert.Equal(t, 1, sweeper.Sweep())
	assert.False(t, pending.Contains("11111111111"))
	assert.True(t, pending.Contains("22222222222"))
}

func TestPendingSweeper_DisabledReturnsImmediately(t *testing.T) {
	sweeper := NewPendingSweeper(usecase.NewPendingTable(), 0, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, sweeper.Run(ctx))
}

func TestPendingSweeper_RunEvicts(t *testing.T) {
	pending := usecase.NewPendingTable()
	pending.Put("11111111111", groupA)
	sweeper := NewPendingSweeper(pending, time.Millisecond, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool { return pending.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GROUP_IDS=-1\n"), 0o600))

	reloader := &mockReloader{}
	watcher := NewConfigWatcher(path, reloader, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Each write lands after the previous debounce window has closed
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("GROUP_IDS=-1,-2\n"), 0o600)
		return reloader.count() > 0
	}, 5*time.Second, 700*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GROUP_IDS=-1\n"), 0o600))

	reloader := &mockReloader{}
	watcher := NewConfigWatcher(path, reloader, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	time.Sleep(700 * time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 0, reloader.count())
}

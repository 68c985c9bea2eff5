package usecase

import (
	"sync/atomic"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

// ActiveGroups holds the group set the router currently serves.
// Reloads swap the whole set; readers never see a partial update.
type ActiveGroups struct {
	current atomic.Pointer[domain.GroupSet]
}

// NewActiveGroups creates an active set holding groups
func NewActiveGroups(groups domain.GroupSet) *ActiveGroups {
	a := &ActiveGroups{}
	a.Replace(groups)
	return a
}

// Contains reports whether chatID is served
func (a *ActiveGroups) Contains(chatID int64) bool {
	return a.Snapshot().Contains(chatID)
}

// Snapshot returns the current set; callers must not mutate it
func (a *ActiveGroups) Snapshot() domain.GroupSet {
	if p := a.current.Load(); p != nil {
		return *p
	}
	return domain.GroupSet{}
}

// Len returns the number of served groups
func (a *ActiveGroups) Len() int {
	return a.Snapshot().Len()
}

// Replace swaps in a copy of groups
func (a *ActiveGroups) Replace(groups domain.GroupSet) {
	copied := domain.NewGroupSet(groups.Sorted()...)
	a.current.Store(&copied)
}

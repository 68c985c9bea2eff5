package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GroupSet is a deduplicated set of marked chat IDs
type GroupSet map[int64]struct{}

// NewGroupSet builds a set from IDs, dropping duplicates
func NewGroupSet(ids ...int64) GroupSet {
	s := make(GroupSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// ParseGroupSet parses a comma separated list of integer IDs.
// Blank entries are skipped; anything else that is not an integer is an error.
func ParseGroupSet(raw string) (GroupSet, error) {
	s := make(GroupSet)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid group id %q: %w", part, err)
		}
		s[id] = struct{}{}
	}
	return s, nil
}

// Contains reports whether id is in the set
func (s GroupSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of IDs
func (s GroupSet) Len() int {
	return len(s)
}

// Sorted returns the IDs in ascending order
func (s GroupSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Minus returns the IDs in s that are not in other
func (s GroupSet) Minus(other GroupSet) GroupSet {
	out := make(GroupSet)
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns the IDs present in either set
func (s GroupSet) Union(other GroupSet) GroupSet {
	out := make(GroupSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same IDs
func (s GroupSet) Equal(other GroupSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// String renders the set as a sorted comma separated list
func (s GroupSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// MembershipKind is the type of chat the account is a member of
type MembershipKind string

const (
	MembershipBasicGroup MembershipKind = "group"
	MembershipSupergroup MembershipKind = "supergroup"
	MembershipBroadcast  MembershipKind = "broadcast"
)

// MembershipInfo describes one live chat membership
type MembershipInfo struct {
	ID    int64 // Marked chat ID
	Title string
	Kind  MembershipKind
}

// TwoWay reports whether members can post messages in the chat
func (m MembershipInfo) TwoWay() bool {
	return m.Kind != MembershipBroadcast
}

// MembershipDiff is the outcome of comparing live and persisted memberships
type MembershipDiff struct {
	Joined GroupSet
	Left   GroupSet
}

// Empty reports whether nothing changed
func (d MembershipDiff) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0
}

// DiffMemberships computes joined = live - persisted and left = persisted - live
func DiffMemberships(persisted, live GroupSet) MembershipDiff {
	return MembershipDiff{
		Joined: live.Minus(persisted),
		Left:   persisted.Minus(live),
	}
}

// Apply returns (persisted ∪ joined) − left
func (d MembershipDiff) Apply(persisted GroupSet) GroupSet {
	return persisted.Union(d.Joined).Minus(d.Left)
}

package domain

import (
	"regexp"
	"time"
)

var (
	queryKeyPattern = regexp.MustCompile(`^\d{11}$`)
	shortKeyPattern = regexp.MustCompile(`^\d{10}$`)
)

// PendingQuery represents a lookup key awaiting the responder's reply
type PendingQuery struct {
	Key        string    // 11-digit lookup key
	OriginChat int64     // Group chat that issued the key
	InsertedAt time.Time // When the query was dispatched
	RequestID  string    // Correlation ID for logs
}

// Age returns how long the query has been pending
func (q PendingQuery) Age(now time.Time) time.Duration {
	return now.Sub(q.InsertedAt)
}

// IsQueryKey reports whether text is exactly an 11-digit key
func IsQueryKey(text string) bool {
	return queryKeyPattern.MatchString(text)
}

// IsShortKey reports whether text is exactly 10 digits
func IsShortKey(text string) bool {
	return shortKeyPattern.MatchString(text)
}

// MaskKey hides all but the first three digits of a key for logging
func MaskKey(key string) string {
	if len(key) <= 3 {
		return key
	}
	return key[:3] + "***"
}

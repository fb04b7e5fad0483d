package cache

import (
	"fmt"
	"time"
)

const (
	// HistoryKeyPrefix caches CheckUserHistory verdicts per user.
	HistoryKeyPrefix = "modhist:%s"
)

const (
	// HistoryTTL is deliberately short: a stale "allow" only delays blocking
	// by seconds, while a stale "block" would lock a user out past appeal.
	HistoryTTL = 30 * time.Second
)

// HistoryKey returns the cache key for a user's moderation history verdict.
func HistoryKey(userID string) string {
	return fmt.Sprintf(HistoryKeyPrefix, userID)
}

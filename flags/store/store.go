package store

import (
	"context"
)

// SortedSetEntry is a single member of a sorted set, with its score.
type SortedSetEntry struct {
	Member string
	Score  float64
}

// Aggregation modes for intersect/union across sorted sets.
const (
	AggregateSum = "SUM"
	AggregateMin = "MIN"
	AggregateMax = "MAX"
)

// Store is the narrow persistence interface the flags engine is written
// against: atomic per-key object (hash) operations, a counter-increment
// primitive, and sorted-set primitives. Backed by redis in production and
// by an in-memory implementation for tests and local development.
type Store interface {
	// GetObject returns all fields of the object at key, or nil if the
	// object does not exist.
	GetObject(ctx context.Context, key string) (map[string]string, error)

	// SetObject upserts the given fields into the object at key, leaving
	// other fields untouched.
	SetObject(ctx context.Context, key string, fields map[string]string) error

	// GetObjectFields returns the requested fields of the object at key.
	// Missing fields are absent from the returned map.
	GetObjectFields(ctx context.Context, key string, fields []string) (map[string]string, error)

	// IncrField atomically increments a numeric object field and returns
	// the new value. The field is created at 1 if absent.
	IncrField(ctx context.Context, key, field string) (int64, error)

	SortedSetAdd(ctx context.Context, key string, score float64, member string) error

	// SortedSetAddNX adds the member only if it is not already present.
	// Returns true if the member was inserted.
	SortedSetAddNX(ctx context.Context, key string, score float64, member string) (bool, error)

	// SortedSetIncrBy increments the member's score, creating the member
	// at delta if absent, and returns the new score.
	SortedSetIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)

	SortedSetRemove(ctx context.Context, key, member string) error

	// SortedSetRevRange returns members ordered by descending score.
	// start and stop are inclusive indexes; negative values count from the
	// end (-1 is the last element).
	SortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	SortedSetRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]SortedSetEntry, error)

	// SortedSetRevIntersect intersects the given sets, combining scores
	// with the aggregate mode, and returns members by descending score.
	SortedSetRevIntersect(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error)

	// SortedSetRevUnion unions the given sets, combining scores with the
	// aggregate mode, and returns members by descending score.
	SortedSetRevUnion(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error)

	IsSortedSetMember(ctx context.Context, key, member string) (bool, error)

	// SortedSetScore returns the member's score, and whether the member is
	// present.
	SortedSetScore(ctx context.Context, key, member string) (float64, bool, error)
}

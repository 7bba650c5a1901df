package store

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a single redis instance. Object keys
// are hashes, sorted sets are native.
type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) GetObject(ctx context.Context, key string) (map[string]string, error) {
	obj, err := s.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return obj, nil
}

func (s *RedisStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.Client.HSet(ctx, key, fields).Err()
}

func (s *RedisStore) GetObjectFields(ctx context.Context, key string, fields []string) (map[string]string, error) {
	vals, err := s.Client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[fields[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) IncrField(ctx context.Context, key, field string) (int64, error) {
	return s.Client.HIncrBy(ctx, key, field, 1).Result()
}

func (s *RedisStore) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	return s.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) SortedSetAddNX(ctx context.Context, key string, score float64, member string) (bool, error) {
	added, err := s.Client.ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return false, err
	}
	return added > 0, nil
}

func (s *RedisStore) SortedSetIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	return s.Client.ZIncrBy(ctx, key, delta, member).Result()
}

func (s *RedisStore) SortedSetRemove(ctx context.Context, key, member string) error {
	return s.Client.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) SortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.Client.ZRevRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) SortedSetRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]SortedSetEntry, error) {
	zs, err := s.Client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]SortedSetEntry, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out[i] = SortedSetEntry{Member: member, Score: z.Score}
	}
	return out, nil
}

func (s *RedisStore) SortedSetRevIntersect(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error) {
	zs, err := s.Client.ZInterWithScores(ctx, &redis.ZStore{
		Keys:      keys,
		Aggregate: aggregate,
	}).Result()
	if err != nil {
		return nil, err
	}
	return revRangeZ(zs, start, stop), nil
}

func (s *RedisStore) SortedSetRevUnion(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error) {
	zs, err := s.Client.ZUnionWithScores(ctx, redis.ZStore{
		Keys:      keys,
		Aggregate: aggregate,
	}).Result()
	if err != nil {
		return nil, err
	}
	return revRangeZ(zs, start, stop), nil
}

func (s *RedisStore) IsSortedSetMember(ctx context.Context, key, member string) (bool, error) {
	_, err := s.Client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SortedSetScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.Client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// ZINTER/ZUNION return ascending score order; re-sort to match ZREVRANGE
// (descending score, descending member on ties) before slicing.
func revRangeZ(zs []redis.Z, start, stop int64) []string {
	entries := make([]SortedSetEntry, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries[i] = SortedSetEntry{Member: member, Score: z.Score}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member > entries[j].Member
	})
	return members(sliceRange(entries, start, stop))
}

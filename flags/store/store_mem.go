package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemStore is an in-memory Store for tests and local development. Safe for
// concurrent use.
type MemStore struct {
	lk      sync.RWMutex
	objects map[string]map[string]string
	zsets   map[string]map[string]float64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string]map[string]string),
		zsets:   make(map[string]map[string]float64),
	}
}

func (s *MemStore) GetObject(ctx context.Context, key string) (map[string]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string, len(fields))
		s.objects[key] = obj
	}
	for k, v := range fields {
		obj[k] = v
	}
	return nil
}

func (s *MemStore) GetObjectFields(ctx context.Context, key string, fields []string) (map[string]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make(map[string]string, len(fields))
	obj, ok := s.objects[key]
	if !ok {
		return out, nil
	}
	for _, f := range fields {
		if v, present := obj[f]; present {
			out[f] = v
		}
	}
	return out, nil
}

func (s *MemStore) IncrField(ctx context.Context, key, field string) (int64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string)
		s.objects[key] = obj
	}
	cur, _ := strconv.ParseInt(obj[field], 10, 64)
	cur++
	obj[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemStore) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.zsetLocked(key)[member] = score
	return nil
}

func (s *MemStore) SortedSetAddNX(ctx context.Context, key string, score float64, member string) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	zs := s.zsetLocked(key)
	if _, ok := zs[member]; ok {
		return false, nil
	}
	zs[member] = score
	return true, nil
}

func (s *MemStore) SortedSetIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	zs := s.zsetLocked(key)
	zs[member] += delta
	return zs[member], nil
}

func (s *MemStore) SortedSetRemove(ctx context.Context, key, member string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if zs, ok := s.zsets[key]; ok {
		delete(zs, member)
	}
	return nil
}

func (s *MemStore) SortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := s.SortedSetRevRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	return members(entries), nil
}

func (s *MemStore) SortedSetRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]SortedSetEntry, error) {
	s.lk.RLock()
	entries := collectRev(s.zsets[key])
	s.lk.RUnlock()
	return sliceRange(entries, start, stop), nil
}

func (s *MemStore) SortedSetRevIntersect(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error) {
	s.lk.RLock()
	combined := s.combineLocked(keys, aggregate, true)
	s.lk.RUnlock()
	return members(sliceRange(collectRev(combined), start, stop)), nil
}

func (s *MemStore) SortedSetRevUnion(ctx context.Context, keys []string, start, stop int64, aggregate string) ([]string, error) {
	s.lk.RLock()
	combined := s.combineLocked(keys, aggregate, false)
	s.lk.RUnlock()
	return members(sliceRange(collectRev(combined), start, stop)), nil
}

func (s *MemStore) IsSortedSetMember(ctx context.Context, key, member string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	zs, ok := s.zsets[key]
	if !ok {
		return false, nil
	}
	_, ok = zs[member]
	return ok, nil
}

func (s *MemStore) SortedSetScore(ctx context.Context, key, member string) (float64, bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	zs, ok := s.zsets[key]
	if !ok {
		return 0, false, nil
	}
	score, ok := zs[member]
	return score, ok, nil
}

func (s *MemStore) zsetLocked(key string) map[string]float64 {
	zs, ok := s.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		s.zsets[key] = zs
	}
	return zs
}

func (s *MemStore) combineLocked(keys []string, aggregate string, intersect bool) map[string]float64 {
	out := make(map[string]float64)
	counts := make(map[string]int)
	for _, key := range keys {
		for member, score := range s.zsets[key] {
			counts[member]++
			cur, seen := out[member]
			if !seen {
				out[member] = score
				continue
			}
			switch aggregate {
			case AggregateMax:
				if score > cur {
					out[member] = score
				}
			case AggregateMin:
				if score < cur {
					out[member] = score
				}
			default:
				out[member] = cur + score
			}
		}
	}
	if intersect {
		for member, n := range counts {
			if n < len(keys) {
				delete(out, member)
			}
		}
	}
	return out
}

// collectRev materializes a sorted set in descending score order, breaking
// score ties by descending member, matching redis ZREVRANGE.
func collectRev(zs map[string]float64) []SortedSetEntry {
	entries := make([]SortedSetEntry, 0, len(zs))
	for member, score := range zs {
		entries = append(entries, SortedSetEntry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member > entries[j].Member
	})
	return entries
}

func sliceRange(entries []SortedSetEntry, start, stop int64) []SortedSetEntry {
	n := int64(len(entries))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []SortedSetEntry{}
	}
	return entries[start : stop+1]
}

func members(entries []SortedSetEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

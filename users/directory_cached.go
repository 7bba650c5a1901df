package users

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

var errNotFoundMarker = "__user_not_found__"

// CachedDirectory wraps another Directory with a redis-backed read cache
// (plus a small local TinyLFU tier) for the hot user-entry lookups that
// flag hydration performs. Write paths (roles, bans) go to the inner
// directory out-of-band; call Purge after mutating a user.
type CachedDirectory struct {
	Inner Directory
	Data  *cache.Cache
	TTL   time.Duration
}

var _ Directory = (*CachedDirectory)(nil)

func NewCachedDirectory(inner Directory, redisURL string, ttl time.Duration) (*CachedDirectory, error) {
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
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &CachedDirectory{Inner: inner, Data: data, TTL: ttl}, nil
}

func userCacheKey(uid string) string {
	return "cache/user/" + uid
}

// entry fetches the full cached user, caching the not-found outcome too so
// repeated lookups of dead uids stay cheap.
func (d *CachedDirectory) entry(ctx context.Context, uid string) (*User, error) {
	var u User
	err := d.Data.Get(ctx, userCacheKey(uid), &u)
	if err == nil {
		if u.Username == errNotFoundMarker {
			return nil, ErrUserNotFound
		}
		return &u, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}

	fresh, err := d.Inner.GetUserData(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		_ = d.Data.Set(&cache.Item{
			Ctx:   ctx,
			Key:   userCacheKey(uid),
			Value: &User{UID: uid, Username: errNotFoundMarker},
			TTL:   d.TTL,
		})
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := d.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   userCacheKey(uid),
		Value: fresh,
		TTL:   d.TTL,
	}); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (d *CachedDirectory) GetUserFields(ctx context.Context, uid string, fields []string) (*User, error) {
	u, err := d.entry(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		return &User{UID: uid}, nil
	}
	if err != nil {
		return nil, err
	}
	return project(u, fields), nil
}

// GetUsersFields serves cache hits per uid, then resolves the entire miss
// set with one batched inner read.
func (d *CachedDirectory) GetUsersFields(ctx context.Context, uids []string, fields []string) ([]*User, error) {
	out := make([]*User, len(uids))
	var missUids []string
	var missIdx []int
	for i, uid := range uids {
		var u User
		err := d.Data.Get(ctx, userCacheKey(uid), &u)
		if err == nil {
			if u.Username == errNotFoundMarker {
				out[i] = &User{UID: uid}
			} else {
				out[i] = project(&u, fields)
			}
			continue
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, err
		}
		missUids = append(missUids, uid)
		missIdx = append(missIdx, i)
	}
	if len(missUids) == 0 {
		return out, nil
	}

	fresh, err := d.Inner.GetUsersFields(ctx, missUids, nil)
	if err != nil {
		return nil, err
	}
	for j, u := range fresh {
		out[missIdx[j]] = project(u, fields)
		if u.Username == "" {
			// unknown uids come back zero-valued from the batched read;
			// leave them uncached so GetUserData keeps its strict
			// not-found behavior
			continue
		}
		if err := d.Data.Set(&cache.Item{
			Ctx:   ctx,
			Key:   userCacheKey(missUids[j]),
			Value: u,
			TTL:   d.TTL,
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *CachedDirectory) GetUserData(ctx context.Context, uid string) (*User, error) {
	u, err := d.entry(ctx, uid)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (d *CachedDirectory) IsBanned(ctx context.Context, uid string) (bool, error) {
	u, err := d.entry(ctx, uid)
	if err != nil {
		return false, err
	}
	return u.Banned, nil
}

// CanEdit is not cached; privilege checks must observe revocations
// immediately.
func (d *CachedDirectory) CanEdit(ctx context.Context, kind, id, uid string) (bool, error) {
	return d.Inner.CanEdit(ctx, kind, id, uid)
}

// GetMembers is not cached; recipient pools must observe role changes
// immediately.
func (d *CachedDirectory) GetMembers(ctx context.Context, role string) ([]string, error) {
	return d.Inner.GetMembers(ctx, role)
}

func (d *CachedDirectory) Purge(ctx context.Context, uid string) error {
	err := d.Data.Delete(ctx, userCacheKey(uid))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

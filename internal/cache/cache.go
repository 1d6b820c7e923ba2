// Package cache keeps short-lived JSON snapshots of backend reads in redis.
// Concurrent loads of the same key share a single backend call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/sync/singleflight"
)

// Patterns covering every owner's level entries.
const (
	TreePattern    = "levels:tree:*"
	SummaryPattern = "levels:summary:*"

	defaultLoadTimeout = 30 * time.Second
)

// Owner turns the identity a value was fetched for into a key segment. The
// backend filters levels by the caller's role, so level entries are never
// shared between callers.
func Owner(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:8])
}

// TreeKey is the key of the level tree as seen by owner.
func TreeKey(owner string) string {
	return "levels:tree:" + owner
}

// SummaryKey is the key of one level's summary as seen by owner.
func SummaryKey(owner, levelID string) string {
	return "levels:summary:" + owner + ":" + levelID
}

// PermissionsKey is the key of a user's effective permissions.
func PermissionsKey(email string) string {
	return "permissions:" + email
}

// Loader fetches the value for a missing key.
type Loader func(ctx context.Context) (any, error)

// Store is a request-deduplicating read-through cache.
type Store struct {
	client      *redis.Client
	prefix      string
	group       singleflight.Group
	loadTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]map[*flight]struct{}
}

// flight is one running load. stale is set when the key is invalidated
// while the load runs; its result is then never written.
type flight struct {
	stale bool
}

// New creates a Store on top of an existing client. prefix is prepended to
// every key.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client:      client,
		prefix:      prefix,
		loadTimeout: defaultLoadTimeout,
		inflight:    make(map[string]map[*flight]struct{}),
	}
}

// Ping checks the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// GetOrLoad decodes the cached value of key into dest. On a miss, load is
// called once for all concurrent callers and the result is stored for ttl.
// The shared load does not follow the cancellation of the caller that
// started it. A redis outage degrades to calling load directly.
func (s *Store) GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load Loader) error {
	full := s.prefix + key

	raw, err := s.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		recordHit(key)
		if err := json.Unmarshal(raw, dest); err == nil {
			return nil
		}
		nuts.L.Warnf("[Cache] Dropping undecodable entry %s", full)
	case err != redis.Nil:
		nuts.L.Warnf("[Cache] Redis get %s failed: %v", full, err)
	}
	recordMiss(key)

	v, err, shared := s.group.Do(full, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		f := s.begin(full)
		value, err := load(loadCtx)
		if err != nil {
			s.end(full, f)
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			s.end(full, f)
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		s.store(loadCtx, full, f, data, ttl)
		return data, nil
	})
	if err != nil {
		return err
	}
	if shared {
		recordShared(key)
	}
	return json.Unmarshal(v.([]byte), dest)
}

func (s *Store) begin(full string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &flight{}
	if s.inflight[full] == nil {
		s.inflight[full] = make(map[*flight]struct{})
	}
	s.inflight[full][f] = struct{}{}
	return f
}

// end deregisters f and reports whether it went stale.
func (s *Store) end(full string, f *flight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight[full], f)
	if len(s.inflight[full]) == 0 {
		delete(s.inflight, full)
	}
	return f.stale
}

func (s *Store) isStale(f *flight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.stale
}

// store writes a loaded value unless the key was invalidated meanwhile. An
// invalidation racing with the write is caught afterwards and the entry is
// deleted again.
func (s *Store) store(ctx context.Context, full string, f *flight, data []byte, ttl time.Duration) {
	if s.isStale(f) {
		s.end(full, f)
		nuts.L.Infof("[Cache] Discarding load of %s invalidated in flight", full)
		return
	}
	if err := s.client.Set(ctx, full, data, ttl).Err(); err != nil {
		nuts.L.Warnf("[Cache] Redis set %s failed: %v", full, err)
	}
	if s.end(full, f) {
		if err := s.client.Del(ctx, full).Err(); err != nil {
			nuts.L.Warnf("[Cache] Redis del %s failed: %v", full, err)
		}
	}
}

// markStale flags the running loads of keys matching match and forgets
// them, so later callers start a fresh load.
func (s *Store) markStale(match func(full string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for full, flights := range s.inflight {
		if !match(full) {
			continue
		}
		for f := range flights {
			f.stale = true
		}
		s.group.Forget(full)
	}
}

// Invalidate removes keys so the next read refetches them.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	set := make(map[string]bool, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
		set[full[i]] = true
		s.group.Forget(full[i])
	}
	s.markStale(func(k string) bool { return set[k] })
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %v: %w", keys, err)
	}
	nuts.L.Infof("[Cache] Invalidated %v", keys)
	return nil
}

// InvalidatePattern removes every key matching a glob pattern, e.g.
// "levels:summary:*".
func (s *Store) InvalidatePattern(ctx context.Context, pattern string) error {
	s.markStale(func(k string) bool {
		ok, _ := path.Match(s.prefix+pattern, k)
		return ok
	})

	var keys []string
	var cursor uint64
	for {
		k, next, err := s.client.Scan(ctx, cursor, s.prefix+pattern, 200).Result()
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", pattern, err)
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

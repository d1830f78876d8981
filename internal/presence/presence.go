// Package presence tracks ephemeral online/offline and typing signals in
// Redis. Records carry a short TTL renewed by client heartbeats; an
// unrenewed record simply expires, so a vanished client converges to
// offline without any platform disconnect hook. Nothing here is on the
// consistency-critical path: callers treat failures as lost hints.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Record is one user's presence state.
type Record struct {
	State       string `json:"state"`
	LastChanged int64  `json:"last_changed"` // epoch millis
}

// KV is the small slice of Redis the tracker needs. The indirection keeps
// the tracker testable without a running Redis.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
}

// InitRedis connects a Redis client from a URL.
func InitRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 50
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type redisKV struct {
	rdb *redis.Client
}

// NewRedisKV wraps a Redis client as a KV.
func NewRedisKV(rdb *redis.Client) KV {
	return &redisKV{rdb: rdb}
}

func (r *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisKV) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func presenceKey(uid string) string {
	return fmt.Sprintf("presence:%s", uid)
}

func typingKey(threadID, uid string) string {
	return fmt.Sprintf("typing:%s:%s", threadID, uid)
}

// Tracker owns the presence and typing keyspace.
type Tracker struct {
	kv          KV
	presenceTTL time.Duration
	typingTTL   time.Duration
	now         func() time.Time
}

func NewTracker(kv KV, presenceTTL, typingTTL time.Duration) *Tracker {
	return &Tracker{
		kv:          kv,
		presenceTTL: presenceTTL,
		typingTTL:   typingTTL,
		now:         time.Now,
	}
}

// SetOnline writes (or renews) the online record. Clients call this on
// connect and then on every heartbeat tick.
func (t *Tracker) SetOnline(ctx context.Context, uid string) error {
	return t.write(ctx, uid, StateOnline)
}

// SetOffline proactively marks the user offline on clean teardown. The
// record keeps the TTL so last_changed stays readable briefly; expiry and
// absence mean offline anyway.
func (t *Tracker) SetOffline(ctx context.Context, uid string) error {
	return t.write(ctx, uid, StateOffline)
}

func (t *Tracker) write(ctx context.Context, uid, state string) error {
	rec := Record{State: state, LastChanged: t.now().UnixMilli()}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, presenceKey(uid), string(body), t.presenceTTL)
}

// Get resolves a user's presence. A missing or unparseable record is
// offline.
func (t *Tracker) Get(ctx context.Context, uid string) (Record, error) {
	raw, ok, err := t.kv.Get(ctx, presenceKey(uid))
	if err != nil {
		return Record{State: StateOffline}, err
	}
	if !ok {
		return Record{State: StateOffline}, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{State: StateOffline}, nil
	}
	return rec, nil
}

// GetMany resolves presence for several users; errors degrade to offline.
func (t *Tracker) GetMany(ctx context.Context, uids []string) map[string]Record {
	res := make(map[string]Record, len(uids))
	for _, uid := range uids {
		rec, err := t.Get(ctx, uid)
		if err != nil {
			rec = Record{State: StateOffline}
		}
		res[uid] = rec
	}
	return res
}

// Typing marks uid as typing in the thread. Each keystroke event renews
// the short TTL; silence lets it expire.
func (t *Tracker) Typing(ctx context.Context, threadID, uid string) error {
	return t.kv.Set(ctx, typingKey(threadID, uid), "1", t.typingTTL)
}

// StopTyping clears the flag immediately (idle timeout fired or message
// sent).
func (t *Tracker) StopTyping(ctx context.Context, threadID, uid string) error {
	return t.kv.Del(ctx, typingKey(threadID, uid))
}

// IsTyping reports whether uid currently has a live typing flag in the
// thread.
func (t *Tracker) IsTyping(ctx context.Context, threadID, uid string) (bool, error) {
	_, ok, err := t.kv.Get(ctx, typingKey(threadID, uid))
	return ok, err
}

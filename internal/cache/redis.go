package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

const (
	pairLockPrefix = "lock:pair:"
	snapshotPrefix = "negotiation:"

	DefaultSnapshotTTL = 30 * time.Minute
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClientInterface is the subset of the Redis client this package uses. Tests mock it.
type RedisClientInterface interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type RedisConfig struct {
	URL         string
	SnapshotTTL time.Duration
}

// RedisService backs pair locks and negotiation snapshots
type RedisService struct {
	client      RedisClientInterface
	snapshotTTL time.Duration

	mu     sync.Mutex
	tokens map[string]string // pair key -> token of the lock this process holds
}

// NewRedisService connects to Redis with OpenTelemetry tracing
func NewRedisService(ctx context.Context, config RedisConfig) (*RedisService, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":       "redis_connection",
		"service":         "cache",
		"instrumentation": "opentelemetry",
	})

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	telemetry.InstrumentRedisClient(client)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.WithError(err).Error("Failed to connect to Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Redis connected successfully")
	return NewRedisServiceWithClient(client, config.SnapshotTTL), nil
}

// NewRedisServiceWithClient wraps an existing client
func NewRedisServiceWithClient(client RedisClientInterface, snapshotTTL time.Duration) *RedisService {
	if snapshotTTL <= 0 {
		snapshotTTL = DefaultSnapshotTTL
	}
	return &RedisService{
		client:      client,
		snapshotTTL: snapshotTTL,
		tokens:      make(map[string]string),
	}
}

// AcquirePairLock claims lock:pair:<key> with SETNX. False means another holder has it.
func (r *RedisService) AcquirePairLock(ctx context.Context, pairKey string, ttl time.Duration) (bool, error) {
	token := uuid.New().String()
	ok, err := r.client.SetNX(ctx, pairLockPrefix+pairKey, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire pair lock: %w", err)
	}
	if ok {
		r.mu.Lock()
		r.tokens[pairKey] = token
		r.mu.Unlock()
	}
	return ok, nil
}

// ReleasePairLock frees a lock this process holds. Releasing an unheld lock is a no-op.
func (r *RedisService) ReleasePairLock(ctx context.Context, pairKey string) error {
	r.mu.Lock()
	token, ok := r.tokens[pairKey]
	delete(r.tokens, pairKey)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, r.client, []string{pairLockPrefix + pairKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release pair lock: %w", err)
	}
	return nil
}

// SaveSnapshot stores v as JSON under the session ID
func (r *RedisService) SaveSnapshot(ctx context.Context, sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotPrefix+sessionID, data, r.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot decodes the session's snapshot into dest. It reports false when none exists.
func (r *RedisService) LoadSnapshot(ctx context.Context, sessionID string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, snapshotPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	return true, nil
}

func (r *RedisService) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, snapshotPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (r *RedisService) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisService) Close() error {
	return r.client.Close()
}

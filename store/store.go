package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when Redis cannot be reached or rejects a command.
var ErrStoreUnavailable = errors.New("idempotency store unavailable")

// ErrRecordCorrupt is returned when a stored value cannot be decoded.
var ErrRecordCorrupt = errors.New("idempotency record corrupt")

// FinalizeMode selects how Finalize treats the record's expiry.
type FinalizeMode int

const (
	// PreserveTTL keeps the expiry countdown started at reservation.
	PreserveTTL FinalizeMode = iota
	// RefreshTTL restarts the full retention window at completion.
	RefreshTTL
)

// ErrReservationLost is returned by Finalize when the key now holds a record
// other than the caller's reservation, e.g. a newer reservation taken after
// the original one expired. Nothing is written in that case.
var ErrReservationLost = errors.New("idempotency reservation no longer owned")

// finalizeOwnedLua overwrites the record only while the key still holds the
// caller's reservation, or holds nothing at all.
// KEYS[1] = scope key
// ARGV[1] = encoded completed record
// ARGV[2] = encoded reservation the caller wrote
// ARGV[3] = ttl in milliseconds
// ARGV[4] = "1" to keep the remaining expiry, "0" to restart it
//
// Returns the ttl in milliseconds applied, or -1 when the key has another owner.
var finalizeOwnedLua = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[2] then
  return -1
end
local ttl = tonumber(ARGV[3])
if ARGV[4] == '1' then
  local remaining = redis.call('PTTL', KEYS[1])
  if remaining > 0 then
    ttl = remaining
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
return ttl
`)

// RedisStore implements the reservation primitives on top of Redis.
type RedisStore struct {
	redis redis.UniversalClient
	mode  FinalizeMode
}

// NewRedisStore returns a store using redisClient. Any UniversalClient works,
// including cluster clients, since every operation touches exactly one key.
func NewRedisStore(redisClient redis.UniversalClient, mode FinalizeMode) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		mode:  mode,
	}
}

// TryReserve creates the record only if key is absent.
// It reports true iff this call created it.
func (s *RedisStore) TryReserve(ctx context.Context, key string, record *Record, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	encoded, err := Encode(record)
	if err != nil {
		return false, err
	}

	ok, err := s.redis.SetNX(ctx, key, encoded, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Read returns the record stored under key, or nil when there is none.
func (s *RedisStore) Read(ctx context.Context, key string) (*Record, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Decode(data)
}

// Finalize overwrites the reservation under key with record. The
// reservation is identified by record's digest and creation time; if the key
// holds anything else Finalize returns ErrReservationLost and writes nothing.
// The ownership check, value and expiry are applied in one atomic script.
func (s *RedisStore) Finalize(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	encoded, err := Encode(record)
	if err != nil {
		return err
	}
	reservation, err := Encode(&Record{
		Status:        StatusProcessing,
		RequestDigest: record.RequestDigest,
		CreatedAt:     record.CreatedAt,
	})
	if err != nil {
		return err
	}

	keep := "1"
	if s.mode == RefreshTTL {
		keep = "0"
	}
	applied, err := finalizeOwnedLua.Run(ctx, s.redis, []string{key}, encoded, reservation, ttl.Milliseconds(), keep).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if applied < 0 {
		return ErrReservationLost
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func checkTTL(ttl time.Duration) error {
	if ttl < time.Millisecond {
		return fmt.Errorf("invalid record ttl %s", ttl)
	}
	return nil
}

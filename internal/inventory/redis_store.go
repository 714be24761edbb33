// Package inventory provides the Redis implementation of the ticket
// inventory ledger store. Each event has one hash holding its total and
// available counters; every mutation runs as a single Lua script so the
// check and the write are applied as one step on the Redis server.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const (
	// reserveScript returns {granted, available}; granted is -1 when the
	// event has no counter.
	reserveScript = `
local avail = redis.call('HGET', KEYS[1], 'available')
if not avail then
	return {-1, 0}
end
avail = tonumber(avail)
local qty = tonumber(ARGV[1])
if avail < qty then
	return {0, avail}
end
return {1, redis.call('HINCRBY', KEYS[1], 'available', -qty)}
`

	// releaseScript returns the new available count, or -1 when the event
	// has no counter. It refuses to go past the total with -2.
	releaseScript = `
local v = redis.call('HMGET', KEYS[1], 'total', 'available')
if not v[1] then
	return -1
end
local qty = tonumber(ARGV[1])
if tonumber(v[2]) + qty > tonumber(v[1]) then
	return -2
end
return redis.call('HINCRBY', KEYS[1], 'available', qty)
`

	// resizeScript returns {status, total, available}; status is 1 when
	// applied, 0 when the new total is below the committed quantity and
	// -1 when the event has no counter.
	resizeScript = `
local v = redis.call('HMGET', KEYS[1], 'total', 'available')
if not v[1] then
	return {-1, 0, 0}
end
local total = tonumber(v[1])
local avail = tonumber(v[2])
local newTotal = tonumber(ARGV[1])
local committed = total - avail
if newTotal < committed then
	return {0, total, avail}
end
redis.call('HSET', KEYS[1], 'total', newTotal, 'available', newTotal - committed)
return {1, newTotal, newTotal - committed}
`

	// seedScript writes the counters only when the event has none yet and
	// returns 1 when it did.
	seedScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'total', ARGV[1], 'available', ARGV[2])
return 1
`
)

// ErrOverRelease is returned when a release would push the available
// counter above the event's total.
var ErrOverRelease = errors.New("release exceeds event capacity")

// RedisStore keeps event inventory counters in Redis.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisStore returns a store whose keys are "<prefix>:<eventID>".
func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "inventory"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(eventID uint64) string {
	return s.prefix + ":" + strconv.FormatUint(eventID, 10)
}

// Seed creates or overwrites the counters of an event.
func (s *RedisStore) Seed(ctx context.Context, eventID uint64, total, available int) error {
	return s.rdb.HSet(ctx, s.key(eventID), "total", total, "available", available).Err()
}

// SeedMissing creates the counters of an event unless they already exist,
// in which case the live counters win and false is returned.
func (s *RedisStore) SeedMissing(ctx context.Context, eventID uint64, total, available int) (bool, error) {
	n, err := s.rdb.Eval(ctx, seedScript, []string{s.key(eventID)}, total, available).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Drop removes the counters of an event.
func (s *RedisStore) Drop(ctx context.Context, eventID uint64) error {
	return s.rdb.Del(ctx, s.key(eventID)).Err()
}

// Reserve decrements the available counter by qty if enough remain.
func (s *RedisStore) Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	vals, err := s.rdb.Eval(ctx, reserveScript, []string{s.key(eventID)}, qty).Int64Slice()
	if err != nil {
		return model.ReserveResult{}, err
	}
	if len(vals) != 2 {
		return model.ReserveResult{}, fmt.Errorf("reserve script: unexpected result %v", vals)
	}
	switch vals[0] {
	case 1:
		return model.ReserveResult{OK: true, Available: int(vals[1])}, nil
	case -1:
		return model.ReserveResult{Reason: model.RefusalNoEvent}, nil
	default:
		return model.ReserveResult{Available: int(vals[1]), Reason: model.RefusalSoldOut}, nil
	}
}

// Release increments the available counter by qty.
func (s *RedisStore) Release(ctx context.Context, eventID uint64, qty int) (int, error) {
	n, err := s.rdb.Eval(ctx, releaseScript, []string{s.key(eventID)}, qty).Int64()
	if err != nil {
		return 0, err
	}
	switch n {
	case -1:
		return 0, model.ErrNoInventory
	case -2:
		return 0, ErrOverRelease
	}
	return int(n), nil
}

// Resize sets the total while keeping the committed quantity unchanged.
func (s *RedisStore) Resize(ctx context.Context, eventID uint64, total int) (model.ResizeResult, error) {
	vals, err := s.rdb.Eval(ctx, resizeScript, []string{s.key(eventID)}, total).Int64Slice()
	if err != nil {
		return model.ResizeResult{}, err
	}
	if len(vals) != 3 {
		return model.ResizeResult{}, fmt.Errorf("resize script: unexpected result %v", vals)
	}
	if vals[0] == -1 {
		return model.ResizeResult{Missing: true}, nil
	}
	inv := model.Inventory{EventID: eventID, Total: int(vals[1]), Available: int(vals[2])}
	return model.ResizeResult{OK: vals[0] == 1, Inventory: inv, Committed: inv.Committed()}, nil
}

// Snapshot reads the counters of an event.
func (s *RedisStore) Snapshot(ctx context.Context, eventID uint64) (model.Inventory, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(eventID), "total", "available").Result()
	if err != nil {
		return model.Inventory{}, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return model.Inventory{}, model.ErrNoInventory
	}
	total, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return model.Inventory{}, fmt.Errorf("parse total: %w", err)
	}
	avail, err := strconv.Atoi(fmt.Sprint(vals[1]))
	if err != nil {
		return model.Inventory{}, fmt.Errorf("parse available: %w", err)
	}
	return model.Inventory{EventID: eventID, Total: total, Available: avail}, nil
}

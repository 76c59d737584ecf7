package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	slotCapacityKeyPrefix  = "slot:capacity:"
	slotCommittedKeyPrefix = "slot:committed:"
)

// adjustCommittedScript adds a delta to a mirrored committed count, flooring
// at zero. A missing key is left missing so the durable store repopulates it
// on the next read-through.
var adjustCommittedScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current) + delta
if current < 0 then
	current = 0
end
redis.call('SET', key, current)
return current
`)

// RedisAdapter mirrors slot capacity for the storefront's hot read path.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetSlot(ctx context.Context, slotID string, capacity, committed int) error {
	return r.client.MSet(ctx,
		slotCapacityKeyPrefix+slotID, capacity,
		slotCommittedKeyPrefix+slotID, committed,
	).Err()
}

func (r *RedisAdapter) AdjustCommitted(ctx context.Context, slotID string, delta int) error {
	key := slotCommittedKeyPrefix + slotID
	return adjustCommittedScript.Run(ctx, r.client, []string{key}, delta).Err()
}

func (r *RedisAdapter) GetSlot(ctx context.Context, slotID string) (int, int, bool, error) {
	vals, err := r.client.MGet(ctx, slotCapacityKeyPrefix+slotID, slotCommittedKeyPrefix+slotID).Result()
	if err != nil {
		return 0, 0, false, err
	}
	capacity, ok1 := parseMirrorInt(vals[0])
	committed, ok2 := parseMirrorInt(vals[1])
	if !ok1 || !ok2 {
		return 0, 0, false, nil
	}
	return capacity, committed, true, nil
}

func parseMirrorInt(v any) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

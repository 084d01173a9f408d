package lib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// One key per slot. The value is the holder's token, so only the holder
// can release or extend the hold.
func SlotLockKey(slotId uint) string {
	return fmt.Sprintf("slot-lock:%d", slotId)
}

const releaseSlotLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

const extendSlotLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

// AcquireSlotLock claims the slot for token with a single SET NX. Returns
// false when another holder already owns the key.
func AcquireSlotLock(ctx context.Context, slotId uint, token string, ttl time.Duration) (bool, error) {
	rd := GetRedisClient()
	ok, err := rd.SetNX(ctx, SlotLockKey(slotId), token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSlotLock deletes the slot key only while token still owns it. A
// stale holder releasing after expiry can therefore never destroy a lock
// that was re-acquired by someone else.
func ReleaseSlotLock(ctx context.Context, slotId uint, token string) (bool, error) {
	rd := GetRedisClient()
	res, err := rd.Eval(ctx, releaseSlotLockScript, []string{SlotLockKey(slotId)}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return res == 1, nil
}

// ExtendSlotLock pushes the expiry of the holder's key out to ttl from now.
// No-op when token no longer owns the key.
func ExtendSlotLock(ctx context.Context, slotId uint, token string, ttl time.Duration) (bool, error) {
	rd := GetRedisClient()
	res, err := rd.Eval(ctx, extendSlotLockScript, []string{SlotLockKey(slotId)}, token, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return res == 1, nil
}

// SlotLockTTL reports the remaining time on a slot's hold.
func SlotLockTTL(ctx context.Context, slotId uint) (time.Duration, error) {
	rd := GetRedisClient()
	return rd.PTTL(ctx, SlotLockKey(slotId)).Result()
}

package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a single Redis key. It is meant for headless
// agents that keep their credential off-host; device installs should prefer
// the encrypted File store.
//
// The whole credential is stored as one JSON value so Save and Load are
// atomic by construction. The key carries a TTL matching the credential's
// advisory expiry, so abandoned credentials age out on their own.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis returns a Redis-backed store. key names the Redis key holding the
// credential; an empty key defaults to "passport:credential".
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "passport:credential"
	}
	return &Redis{client: client, key: key}
}

// Save replaces the stored credential.
func (r *Redis) Save(ctx context.Context, cred Credential) error {
	data, err := json.Marshal(filePayload{
		RefreshToken: cred.RefreshToken,
		ExpiresAtMS:  cred.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("credstore: marshal: %w", err)
	}

	var ttl time.Duration
	if !cred.ExpiresAt.IsZero() {
		ttl = time.Until(cred.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("credstore: credential already expired")
		}
	}

	if err := r.client.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the stored credential. Connection failures report absent.
func (r *Redis) Load(ctx context.Context) (Credential, bool) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		// redis.Nil (no credential) and transport errors both fail closed.
		return Credential{}, false
	}

	var p filePayload
	if err := json.Unmarshal([]byte(val), &p); err != nil || p.RefreshToken == "" {
		return Credential{}, false
	}
	return Credential{
		RefreshToken: p.RefreshToken,
		ExpiresAt:    time.UnixMilli(p.ExpiresAtMS),
	}, true
}

// Clear removes the stored credential.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

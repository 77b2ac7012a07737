// Package token issues, verifies and rotates the signed access and refresh
// tokens used by the auth endpoints.  Refresh-token validity is recorded in
// a key-value revocation store: presence of a token id means the token is
// still live, absence means it was rotated or revoked.
package token

import (
    "context"
    "encoding/json"
    "time"

    "github.com/redis/go-redis/v9"
)

// Entry is the side record kept per refresh-token id.  It carries enough
// context to revoke by user and to detect replay within a token family.
type Entry struct {
    UserID   string    `json:"user_id"`
    Family   string    `json:"token_family"`
    IssuedAt time.Time `json:"issued_at"`
}

// RevocationStore abstracts the fast key-value store behind the issuer so
// tests can substitute an in-memory fake.  All methods must be safe for
// concurrent use.
type RevocationStore interface {
    // Put records a live token id with a TTL mirroring the token expiry.
    Put(ctx context.Context, userID, tokenID string, e Entry, ttl time.Duration) error
    // Get returns the entry for a token id.  The second result is false
    // when the id is absent (revoked or expired).
    Get(ctx context.Context, userID, tokenID string) (Entry, bool, error)
    // Delete removes a token id and reports whether this call actually
    // removed it.  Deleting an absent id is a no-op that returns false,
    // which is how concurrent consumers of the same id are serialized:
    // exactly one caller sees true.
    Delete(ctx context.Context, userID, tokenID string) (bool, error)
    // DeleteAll removes every live token id recorded for the user and
    // returns how many were deleted.
    DeleteAll(ctx context.Context, userID string) (int, error)
    // DeleteFamily removes every live token id of the user whose entry
    // belongs to the given family.
    DeleteFamily(ctx context.Context, userID, family string) (int, error)
}

const keyPrefix = "refresh_token:"

// RedisStore implements RevocationStore on a Redis client.  Keys follow the
// pattern refresh_token:<userID>:<tokenID> so that per-user bulk deletes
// can SCAN a narrow prefix.
type RedisStore struct {
    rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func storeKey(userID, tokenID string) string {
    return keyPrefix + userID + ":" + tokenID
}

func (s *RedisStore) Put(ctx context.Context, userID, tokenID string, e Entry, ttl time.Duration) error {
    body, err := json.Marshal(e)
    if err != nil {
        return err
    }
    return s.rdb.Set(ctx, storeKey(userID, tokenID), body, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID, tokenID string) (Entry, bool, error) {
    raw, err := s.rdb.Get(ctx, storeKey(userID, tokenID)).Bytes()
    if err == redis.Nil {
        return Entry{}, false, nil
    }
    if err != nil {
        return Entry{}, false, err
    }
    var e Entry
    if err := json.Unmarshal(raw, &e); err != nil {
        return Entry{}, false, err
    }
    return e, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, tokenID string) (bool, error) {
    n, err := s.rdb.Del(ctx, storeKey(userID, tokenID)).Result()
    return n > 0, err
}

// DeleteAll scans the user's key prefix and deletes everything found.
// SCAN keeps the operation incremental; the per-user keyspace is small
// (one key per live session).
func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
    return s.deleteMatching(ctx, userID, func(Entry) bool { return true })
}

func (s *RedisStore) DeleteFamily(ctx context.Context, userID, family string) (int, error) {
    return s.deleteMatching(ctx, userID, func(e Entry) bool { return e.Family == family })
}

func (s *RedisStore) deleteMatching(ctx context.Context, userID string, match func(Entry) bool) (int, error) {
    var (
        cursor  uint64
        deleted int
    )
    pattern := keyPrefix + userID + ":*"
    for {
        keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
        if err != nil {
            return deleted, err
        }
        for _, k := range keys {
            raw, err := s.rdb.Get(ctx, k).Bytes()
            if err == redis.Nil {
                continue // expired between scan and read
            }
            if err != nil {
                return deleted, err
            }
            var e Entry
            if err := json.Unmarshal(raw, &e); err != nil || !match(e) {
                continue
            }
            if err := s.rdb.Del(ctx, k).Err(); err != nil {
                return deleted, err
            }
            deleted++
        }
        cursor = next
        if cursor == 0 {
            return deleted, nil
        }
    }
}

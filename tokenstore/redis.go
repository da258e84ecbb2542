package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldTokenHash = "th"
	fieldUserID    = "uid"
	fieldKind      = "kind"
	fieldExpires   = "exp"
	fieldRevoked   = "rev"
	fieldCreated   = "ct"
)

// Sets rev=1 when the record exists. Returns 1 if the record exists.
const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "rev", "1")
return 1
`

// Flips rev 0->1 only for a live, unexpired record. Returns 1 for the single
// winner and 0 for everyone else.
const revokeIfActiveScript = `
local fields = redis.call("HMGET", KEYS[1], "rev", "exp")
if not fields[1] then
  return 0
end
if fields[1] == "1" then
  return 0
end
if tonumber(fields[2]) <= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "rev", "1")
return 1
`

var (
	revokeLua         = redis.NewScript(revokeScript)
	revokeIfActiveLua = redis.NewScript(revokeIfActiveScript)
)

// RedisStore keeps one hash per record plus a digest->id index. Keys expire
// Retention after the token itself, which is the only retention sweep.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore returns a store namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "rt"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":rec:" + id
}

func (s *RedisStore) indexKey(tokenHash string) string {
	return s.prefix + ":tok:" + tokenHash
}

func (s *RedisStore) Persist(ctx context.Context, token, userID string, kind jwt.Kind, expiresAt time.Time) (*Record, error) {
	now := s.now()
	rec := &Record{
		ID:        uuid.NewString(),
		TokenHash: HashToken(token),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	evictAt := expiresAt.Add(s.retention)
	if !evictAt.After(now) {
		evictAt = now.Add(time.Second)
	}

	recKey := s.recordKey(rec.ID)
	idxKey := s.indexKey(rec.TokenHash)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recKey,
			fieldTokenHash, rec.TokenHash,
			fieldUserID, rec.UserID,
			fieldKind, string(rec.Kind),
			fieldExpires, strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
			fieldRevoked, "0",
			fieldCreated, strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		)
		pipe.PExpireAt(ctx, recKey, evictAt)
		pipe.Set(ctx, idxKey, rec.ID, 0)
		pipe.PExpireAt(ctx, idxKey, evictAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return rec, nil
}

func (s *RedisStore) FindActive(ctx context.Context, token string, kind jwt.Kind, userID string) (*Record, error) {
	id, err := s.redis.Get(ctx, s.indexKey(HashToken(token))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	fields, err := s.redis.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec, err := decodeRecord(id, fields)
	if err != nil {
		return nil, ErrNotFound
	}
	if rec.Kind != kind || rec.UserID != userID || !rec.Active(s.now()) {
		return nil, ErrNotFound
	}

	return rec, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(id)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeIfActive(ctx context.Context, id string) (bool, error) {
	won, err := revokeIfActiveLua.Run(ctx, s.redis, []string{s.recordKey(id)}, s.now().UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return won == 1, nil
}

func decodeRecord(id string, fields map[string]string) (*Record, error) {
	exp, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return nil, err
	}
	created, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:        id,
		TokenHash: fields[fieldTokenHash],
		UserID:    fields[fieldUserID],
		Kind:      jwt.Kind(fields[fieldKind]),
		ExpiresAt: time.UnixMilli(exp),
		Revoked:   fields[fieldRevoked] == "1",
		CreatedAt: time.UnixMilli(created),
	}, nil
}

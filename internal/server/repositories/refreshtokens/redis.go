package refreshtokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisRecordPrefix = "rt:"
	redisUserPrefix   = "rtu:"

	// DefaultRetention keeps expired records around long enough for the
	// issuer to observe and delete them instead of seeing them vanish.
	DefaultRetention = 7 * 24 * time.Hour
)

const (
	saveStatusDuplicate int64 = 0
	saveStatusSaved     int64 = 1

	rotateStatusNotFound  int64 = 0
	rotateStatusRotated   int64 = 1
	rotateStatusDuplicate int64 = 2
)

// KEYS: record, user index. ARGV: digest, id, user_id, expires_at,
// created_at, ttl ms.
const saveScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[2], "user_id", ARGV[3], "expires_at", ARGV[4], "created_at", ARGV[5])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("SADD", KEYS[2], ARGV[1])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[6]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[6])
end
return 1
`

// KEYS: old record, new record, new user index. ARGV: old digest, user
// prefix, new digest, id, user_id, expires_at, created_at, ttl ms.
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
local uid = redis.call("HGET", KEYS[1], "user_id")
redis.call("DEL", KEYS[1])
if uid then
  redis.call("SREM", ARGV[2] .. uid, ARGV[1])
end
redis.call("HSET", KEYS[2], "id", ARGV[4], "user_id", ARGV[5], "expires_at", ARGV[6], "created_at", ARGV[7])
redis.call("PEXPIRE", KEYS[2], ARGV[8])
redis.call("SADD", KEYS[3], ARGV[3])
if redis.call("PTTL", KEYS[3]) < tonumber(ARGV[8]) then
  redis.call("PEXPIRE", KEYS[3], ARGV[8])
end
return 1
`

// KEYS: record. ARGV: digest, user prefix.
const deleteScript = `
local uid = redis.call("HGET", KEYS[1], "user_id")
if not uid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. uid, ARGV[1])
return 1
`

// KEYS: user index. ARGV: record prefix.
const deleteUserScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, h in ipairs(members) do
  n = n + redis.call("DEL", ARGV[1] .. h)
end
redis.call("DEL", KEYS[1])
return n
`

var (
	saveLua       = redis.NewScript(saveScript)
	rotateLua     = redis.NewScript(rotateScript)
	deleteLua     = redis.NewScript(deleteScript)
	deleteUserLua = redis.NewScript(deleteUserScript)
)

// RedisStore keeps each record in a hash keyed by the token digest, plus a
// per-user set of digests. Mutations run as Lua scripts so they are atomic.
//
// The scripts derive key names at run time (the user index from a record,
// records from the index), so every key must live on one node. The store
// therefore takes a *redis.Client (standalone or sentinel failover) and not
// a cluster client.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

type RedisOption func(*RedisStore)

// WithRedisClock replaces time.Now when computing key TTLs and creation
// times. It should match the clock of the issuer writing records.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func recordKey(digest string) string { return redisRecordPrefix + digest }
func userKey(userID string) string   { return redisUserPrefix + userID }

func (s *RedisStore) ttl(rt *models.RefreshToken) int64 {
	d := rt.ExpiresAt.Sub(s.now()) + s.retention
	if d < time.Second {
		d = time.Second
	}
	return d.Milliseconds()
}

func (s *RedisStore) prepare(rt *models.RefreshToken) {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = s.now()
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *RedisStore) Save(ctx context.Context, rt *models.RefreshToken) error {
	s.prepare(rt)
	h := Digest(rt.Token)

	res, err := saveLua.Run(ctx, s.client,
		[]string{recordKey(h), userKey(rt.UserID)},
		h, rt.ID, rt.UserID, formatTime(rt.ExpiresAt), formatTime(rt.CreatedAt), s.ttl(rt),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == saveStatusDuplicate {
		return common.ErrDuplicateToken
	}
	return nil
}

func (s *RedisStore) FindByToken(ctx context.Context, token string) (*models.RefreshToken, bool, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(Digest(token))).Result()
	if err != nil {
		return nil, false, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	rt := &models.RefreshToken{
		ID:     fields["id"],
		Token:  token,
		UserID: fields["user_id"],
	}
	if rt.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, false, unavailable(fmt.Errorf("corrupt expires_at: %w", err))
	}
	if rt.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, false, unavailable(fmt.Errorf("corrupt created_at: %w", err))
	}
	return rt, true, nil
}

func (s *RedisStore) DeleteByToken(ctx context.Context, token string) error {
	h := Digest(token)
	if err := deleteLua.Run(ctx, s.client, []string{recordKey(h)}, h, redisUserPrefix).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	n, err := deleteUserLua.Run(ctx, s.client, []string{userKey(userID)}, redisRecordPrefix).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *RedisStore) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) error {
	s.prepare(next)
	oldHash, newHash := Digest(oldToken), Digest(next.Token)

	res, err := rotateLua.Run(ctx, s.client,
		[]string{recordKey(oldHash), recordKey(newHash), userKey(next.UserID)},
		oldHash, redisUserPrefix, newHash, next.ID, next.UserID,
		formatTime(next.ExpiresAt), formatTime(next.CreatedAt), strconv.FormatInt(s.ttl(next), 10),
	).Int64()
	if err != nil {
		return unavailable(err)
	}

	switch res {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return common.ErrorNotFound
	case rotateStatusDuplicate:
		return common.ErrDuplicateToken
	default:
		return unavailable(fmt.Errorf("unexpected rotate status %d", res))
	}
}

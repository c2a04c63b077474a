package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/internal/random"
	"github.com/redis/go-redis/v9"
)

const (
	fieldPrincipal = "principal_id"
	fieldExpires   = "expires_at"
	fieldCreated   = "created_at"
)

// KEYS[1] token key, ARGV[1] index prefix, ARGV[2] token hash.
const deleteTokenScript = `
local pid = redis.call("HGET", KEYS[1], "principal_id")
if not pid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. pid, ARGV[2])
return 1
`

// KEYS[1] index key, ARGV[1] token key prefix.
const deletePrincipalScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, h in ipairs(members) do
  deleted = deleted + redis.call("DEL", ARGV[1] .. h)
end
redis.call("DEL", KEYS[1])
return deleted
`

var (
	deleteTokenLua     = redis.NewScript(deleteTokenScript)
	deletePrincipalLua = redis.NewScript(deletePrincipalScript)
)

// RedisStore keeps refresh tokens in Redis.
type RedisStore struct {
	client redis.UniversalClient
	cfg    Config
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store using client.
func NewRedisStore(client redis.UniversalClient, cfg Config) *RedisStore {
	return &RedisStore{client: client, cfg: cfg.withDefaults()}
}

func (s *RedisStore) tokenPrefix() string { return s.cfg.Prefix + ":t:" }
func (s *RedisStore) indexPrefix() string { return s.cfg.Prefix + ":p:" }

func (s *RedisStore) tokenKey(hash string) string { return s.tokenPrefix() + hash }
func (s *RedisStore) indexKey(id string) string   { return s.indexPrefix() + id }

// Issue creates and persists a new token for principalID.
func (s *RedisStore) Issue(ctx context.Context, principalID string) (Record, error) {
	if principalID == "" {
		return Record{}, errors.New("refresh: empty principal id")
	}
	token, err := random.NewToken()
	if err != nil {
		return Record{}, err
	}

	now := s.cfg.Now()
	rec := Record{
		Token:       token,
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}
	hash := random.HashToken(token)
	keep := s.cfg.TTL + s.cfg.Retention

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.tokenKey(hash)
		pipe.HSet(ctx, key,
			fieldPrincipal, principalID,
			fieldExpires, rec.ExpiresAt.UnixMilli(),
			fieldCreated, rec.CreatedAt.UnixMilli(),
		)
		pipe.Expire(ctx, key, keep)
		pipe.SAdd(ctx, s.indexKey(principalID), hash)
		pipe.Expire(ctx, s.indexKey(principalID), keep)
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

// Lookup returns the row for token, expired or not.
func (s *RedisStore) Lookup(ctx context.Context, token string) (*Record, error) {
	if !random.WellFormed(token) {
		return nil, ErrNotFound
	}
	fields, err := s.client.HGetAll(ctx, s.tokenKey(random.HashToken(token))).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec, err := decodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	rec.Token = token
	return rec, nil
}

// Delete removes token. It reports false when no row existed.
func (s *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	if !random.WellFormed(token) {
		return false, nil
	}
	return s.deleteHash(ctx, random.HashToken(token))
}

func (s *RedisStore) deleteHash(ctx context.Context, hash string) (bool, error) {
	n, err := deleteTokenLua.Run(ctx, s.client,
		[]string{s.tokenKey(hash)},
		s.indexPrefix(), hash,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// DeleteAllForPrincipal removes every token owned by principalID.
func (s *RedisStore) DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error) {
	n, err := deletePrincipalLua.Run(ctx, s.client,
		[]string{s.indexKey(principalID)},
		s.tokenPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// DeleteExpired walks the principal indexes and removes rows whose expiry is
// before the cutoff. Index entries whose row already aged out are pruned.
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)
	cutoff := before.UnixMilli()

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.indexPrefix()+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for _, idx := range keys {
			n, err := s.sweepIndex(ctx, idx, cutoff)
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *RedisStore) sweepIndex(ctx context.Context, idx string, cutoff int64) (int64, error) {
	hashes, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var deleted int64
	for _, hash := range hashes {
		raw, err := s.client.HGet(ctx, s.tokenKey(hash), fieldExpires).Result()
		if errors.Is(err, redis.Nil) {
			s.client.SRem(ctx, idx, hash)
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || exp >= cutoff {
			continue
		}
		ok, err := s.deleteHash(ctx, hash)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

func decodeFields(fields map[string]string) (*Record, error) {
	pid := fields[fieldPrincipal]
	if pid == "" {
		return nil, errors.New("refresh record missing principal")
	}
	exp, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return nil, errors.New("refresh record has invalid expiry")
	}
	created, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, errors.New("refresh record has invalid creation time")
	}
	return &Record{
		PrincipalID: pid,
		ExpiresAt:   time.UnixMilli(exp),
		CreatedAt:   time.UnixMilli(created),
	}, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chattyhq/export-service/internal/domain"
)

const (
	sessionKeyPrefix = "export:session:"
	// expiryIndexKey tracks session expiry alongside the key TTL so the sweep
	// worker can locate artifact files whose session Redis already dropped.
	expiryIndexKey = "export:session:expiry"
)

// consumeScript performs the verified/consumed check and the increment as one
// atomic server-side step. Two concurrent downloads that both observe
// download_count == 0 would otherwise both stream the artifact.
var consumeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
if redis.call('HGET', KEYS[1], 'verified') ~= '1' then
  return 'unverified'
end
local n = redis.call('HINCRBY', KEYS[1], 'download_count', 1)
if n > 1 then
  redis.call('HSET', KEYS[1], 'download_count', '1')
  return 'consumed'
end
return redis.call('HGET', KEYS[1], 'payload')
`)

// verifyScript writes the verified payload only while the session is still
// unverified. Two concurrent code checks can both pass the client-side
// read; the guard here makes the first writer win so verified_at is never
// overwritten by a later re-verification.
var verifyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
if redis.call('HGET', KEYS[1], 'verified') == '1' then
  return 'noop'
end
redis.call('HSET', KEYS[1], 'payload', ARGV[1], 'verified', '1')
return 'ok'
`)

// RedisSessionStore keeps export sessions in Redis hashes with token-aligned
// TTL, so the registry survives process restarts and expires on its own.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Put(ctx context.Context, session domain.ExportSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	key := sessionKeyPrefix + session.Token
	verified := "0"
	if session.Verified {
		verified = "1"
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"payload", payload,
			"verified", verified,
			"download_count", session.DownloadCount,
		)
		p.Expire(ctx, key, ttl)
		p.ZAdd(ctx, expiryIndexKey, redis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: session.Token + "|" + session.ArtifactPath,
		})
		return nil
	})
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*domain.ExportSession, error) {
	data, err := s.client.HGetAll(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return sessionFromHash(data)
}

func (s *RedisSessionStore) MarkVerified(ctx context.Context, token string, at time.Time) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return domain.ErrNotFound
	}
	if session.Verified {
		return nil
	}
	session.MarkVerified(at)
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	res, err := verifyScript.Run(ctx, s.client, []string{sessionKeyPrefix + token}, payload).Result()
	if err != nil {
		return err
	}
	if res == "missing" {
		return domain.ErrNotFound
	}
	// 'noop' means another verifier won the race; their timestamp stands.
	return nil
}

func (s *RedisSessionStore) ConsumeOnce(ctx context.Context, token string) (domain.ExportSession, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{sessionKeyPrefix + token}).Result()
	if err != nil {
		return domain.ExportSession{}, err
	}
	raw, ok := res.(string)
	if !ok {
		return domain.ExportSession{}, fmt.Errorf("unexpected consume script result %T", res)
	}
	switch raw {
	case "missing":
		return domain.ExportSession{}, domain.ErrNotFound
	case "unverified":
		return domain.ExportSession{}, domain.ErrNotVerified
	case "consumed":
		return domain.ExportSession{}, domain.ErrAlreadyConsumed
	}
	var session domain.ExportSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.ExportSession{}, err
	}
	session.DownloadCount = 1
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	session, err := s.Get(ctx, token)
	_, txErr := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKeyPrefix+token)
		if err == nil && session != nil {
			p.ZRem(ctx, expiryIndexKey, token+"|"+session.ArtifactPath)
		}
		return nil
	})
	return txErr
}

// PurgeExpired walks the expiry index and returns the sessions Redis already
// expired (or is about to), so the caller can remove their artifact files.
func (s *RedisSessionStore) PurgeExpired(ctx context.Context, now time.Time) ([]domain.ExportSession, error) {
	members, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}

	purged := make([]domain.ExportSession, 0, len(members))
	for _, member := range members {
		token, artifactPath, found := strings.Cut(member, "|")
		if !found {
			continue
		}
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, sessionKeyPrefix+token)
			p.ZRem(ctx, expiryIndexKey, member)
			return nil
		})
		if err != nil {
			return purged, err
		}
		purged = append(purged, domain.ExportSession{
			Token:        token,
			ArtifactPath: artifactPath,
			ExpiresAt:    now,
		})
	}
	return purged, nil
}

func sessionFromHash(data map[string]string) (*domain.ExportSession, error) {
	raw, ok := data["payload"]
	if !ok || raw == "" {
		return nil, nil
	}
	var session domain.ExportSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	if data["verified"] == "1" {
		session.Verified = true
	}
	if count, ok := data["download_count"]; ok && count != "" && count != "0" {
		session.DownloadCount = 1
	}
	return &session, nil
}

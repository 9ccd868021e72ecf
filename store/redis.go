package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by a RedisStore.
const DefaultKeyPrefix = "tg"

const createUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "password_hash", ARGV[1], "authorities", ARGV[2], "created_at", ARGV[3])
return 1
`

var createUserLua = redis.NewScript(createUserScript)

// RedisStore keeps each user in a hash at <prefix>:user:<username>. Posts
// are hashes at <prefix>:post:<id>, indexed by the sorted set
// <prefix>:posts scored by creation time in microseconds.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

var _ Backend = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. An empty prefix selects
// DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) userKey(username string) string {
	return s.prefix + ":user:" + username
}

func (s *RedisStore) postKey(id string) string {
	return s.prefix + ":post:" + id
}

func (s *RedisStore) postIndexKey() string {
	return s.prefix + ":posts"
}

func (s *RedisStore) FindByUsername(ctx context.Context, username string) (tokengate.CredentialRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(username)).Result()
	if err != nil {
		return tokengate.CredentialRecord{}, unavailable(err)
	}
	hash, ok := fields["password_hash"]
	if !ok {
		return tokengate.CredentialRecord{}, tokengate.ErrUserNotFound
	}
	return tokengate.CredentialRecord{
		Username:     username,
		PasswordHash: hash,
		Authorities:  splitAuthorities(fields["authorities"]),
	}, nil
}

func (s *RedisStore) CreateUser(ctx context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	created, err := createUserLua.Run(ctx, s.redis,
		[]string{s.userKey(rec.Username)},
		rec.PasswordHash, joinAuthorities(rec.Authorities), time.Now().UnixNano(),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return tokengate.ErrUserExists
	}
	return nil
}

func (s *RedisStore) PutUser(ctx context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	key := s.userKey(rec.Username)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"password_hash", rec.PasswordHash,
			"authorities", joinAuthorities(rec.Authorities),
			"created_at", time.Now().UnixNano(),
		)
		return nil
	})
	return unavailable(err)
}

func (s *RedisStore) DeleteUser(ctx context.Context, username string) error {
	return unavailable(s.redis.Del(ctx, s.userKey(username)).Err())
}

func (s *RedisStore) CreatePost(ctx context.Context, p Post) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.postKey(p.ID),
			"author", p.Author,
			"content", p.Content,
			"created_at", p.CreatedAt.UnixNano(),
		)
		pipe.ZAdd(ctx, s.postIndexKey(), redis.Z{Score: float64(p.CreatedAt.UnixMicro()), Member: p.ID})
		return nil
	})
	return unavailable(err)
}

func (s *RedisStore) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	ids, err := s.redis.ZRevRange(ctx, s.postIndexKey(), 0, int64(listLimit(limit)-1)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.postKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	posts := make([]Post, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, unavailable(err)
		}
		if len(fields) == 0 {
			continue
		}
		created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
		posts = append(posts, Post{
			ID:        ids[i],
			Author:    fields["author"],
			Content:   fields["content"],
			CreatedAt: time.Unix(0, created).UTC(),
		})
	}
	return posts, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return unavailable(s.redis.Ping(ctx).Err())
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}

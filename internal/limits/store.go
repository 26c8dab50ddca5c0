package limits

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidgate/videobot/internal/logctx"
)

const (
	// KeyQuotaRecord is the Redis key holding the persisted quota counters.
	KeyQuotaRecord = "videobot:quota:record"
)

// Store persists the quota record. A load must always succeed: missing or
// corrupt data degrades to a fresh record, never to an error that would stop
// the bot.
type Store interface {
	Load(ctx context.Context) *Record
	Save(ctx context.Context, record *Record) error
}

// RedisStore keeps the quota record in a single Redis hash. Each save writes
// the whole record in one HSET, so a reader never observes a half-written
// record.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		key:    KeyQuotaRecord,
		now:    time.Now,
	}
}

func (s *RedisStore) Load(ctx context.Context) *Record {
	logger := logctx.LoggerFromContext(ctx)

	m, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		logger.Error("failed to load quota record, starting fresh", "err", err)
		return NewRecord(s.now())
	}

	if len(m) == 0 {
		return NewRecord(s.now())
	}

	record := &Record{}
	if err := record.FromRedisMap(m); err != nil {
		logger.Error("corrupt quota record, starting fresh", "err", err)
		return NewRecord(s.now())
	}

	return record
}

func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	m, err := record.ToRedisMap()
	if err != nil {
		return err
	}

	return s.client.HSet(ctx, s.key, m).Err()
}

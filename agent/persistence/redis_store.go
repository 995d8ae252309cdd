package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-based implementation of Store.
// Discussions are JSON strings indexed by a sorted set on creation time.
// Each transcript is a hash keyed by sequence number.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// NewRedisStore creates a new Redis-based store
func NewRedisStore(config StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisStoreWithClient(client, config.Redis.KeyPrefix)
	store.ownClient = true
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agentpanel:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Close closes the store
func (s *RedisStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) discussionKey(id string) string {
	return s.keyPrefix + "discussion:" + id
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "discussions"
}

func (s *RedisStore) messagesKey(id string) string {
	return s.keyPrefix + "messages:" + id
}

// CreateDiscussion stores a new discussion record
func (s *RedisStore) CreateDiscussion(ctx context.Context, rec *DiscussionRecord) error {
	if err := validateDiscussion(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal discussion: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.discussionKey(rec.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}

	return s.client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.CreatedAt.UnixNano()),
		Member: rec.ID,
	}).Err()
}

// GetDiscussion retrieves a discussion by ID
func (s *RedisStore) GetDiscussion(ctx context.Context, id string) (*DiscussionRecord, error) {
	data, err := s.client.Get(ctx, s.discussionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec DiscussionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discussion: %w", err)
	}
	return &rec, nil
}

// ListDiscussions returns discussions newest first
func (s *RedisStore) ListDiscussions(ctx context.Context, offset, limit int) ([]*DiscussionRecord, int, error) {
	offset, limit = normalizePage(offset, limit)

	total, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, 0, err
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []*DiscussionRecord{}, int(total), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.discussionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, err
	}

	out := make([]*DiscussionRecord, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec DiscussionRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, int(total), nil
}

// UpdateStatus moves a discussion to status
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidInput
	}
	return s.update(ctx, id, func(rec *DiscussionRecord) { rec.Status = status })
}

// UpdateMode records the selection mode
func (s *RedisStore) UpdateMode(ctx context.Context, id string, mode string) error {
	if mode == "" {
		return ErrInvalidInput
	}
	return s.update(ctx, id, func(rec *DiscussionRecord) { rec.Mode = mode })
}

// update applies fn under an optimistic WATCH transaction.
func (s *RedisStore) update(ctx context.Context, id string, fn func(*DiscussionRecord)) error {
	key := s.discussionKey(id)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec DiscussionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal discussion: %w", err)
		}
		fn(&rec)
		rec.UpdatedAt = time.Now()

		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal discussion: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

// AppendMessage stores one transcript entry
func (s *RedisStore) AppendMessage(ctx context.Context, msg *MessageRecord) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	exists, err := s.client.Exists(ctx, s.discussionKey(msg.DiscussionID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	// Generate ID if not set
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, s.messagesKey(msg.DiscussionID), strconv.Itoa(msg.Seq), data).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// ListMessages returns a discussion's entries ordered by seq
func (s *RedisStore) ListMessages(ctx context.Context, discussionID string) ([]*MessageRecord, error) {
	pipe := s.client.Pipeline()
	existsCmd := pipe.Exists(ctx, s.discussionKey(discussionID))
	allCmd := pipe.HGetAll(ctx, s.messagesKey(discussionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	if existsCmd.Val() == 0 {
		return nil, ErrNotFound
	}

	out := make([]*MessageRecord, 0, len(allCmd.Val()))
	for _, raw := range allCmd.Val() {
		var msg MessageRecord
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, &msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

var _ Store = (*RedisStore)(nil)

package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// Status is the persisted lifecycle of a discussion.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusCompleted:
		return true
	}
	return false
}

// DiscussionRecord is the stored metadata of one discussion.
type DiscussionRecord struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Mode      string    `json:"mode"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRecord is one stored transcript entry.
type MessageRecord struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	Seq          int       `json:"seq"`
	Speaker      string    `json:"speaker"`
	Content      string    `json:"content"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// DiscussionStore persists discussion metadata.
type DiscussionStore interface {
	// CreateDiscussion stores a new record. ID must be set.
	CreateDiscussion(ctx context.Context, rec *DiscussionRecord) error

	// GetDiscussion retrieves a record by ID
	GetDiscussion(ctx context.Context, id string) (*DiscussionRecord, error)

	// ListDiscussions returns records newest first, plus the total count
	ListDiscussions(ctx context.Context, offset, limit int) ([]*DiscussionRecord, int, error)

	// UpdateStatus moves a discussion to status
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateMode records the current selection mode
	UpdateMode(ctx context.Context, id string, mode string) error
}

// TranscriptStore persists transcript entries.
type TranscriptStore interface {
	// AppendMessage stores one entry. (DiscussionID, Seq) must be unique.
	AppendMessage(ctx context.Context, msg *MessageRecord) error

	// ListMessages returns a discussion's entries in sequence order
	ListMessages(ctx context.Context, discussionID string) ([]*MessageRecord, error)
}

// Store is the full storage surface used by hosts.
type Store interface {
	DiscussionStore
	TranscriptStore

	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "agentpanel:",
		},
	}
}

func validateDiscussion(rec *DiscussionRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidInput
	}
	if rec.Status == "" {
		rec.Status = StatusCreated
	}
	if !rec.Status.Valid() {
		return ErrInvalidInput
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	return nil
}

func validateMessage(msg *MessageRecord) error {
	if msg == nil || msg.DiscussionID == "" || msg.Seq < 0 {
		return ErrInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return nil
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

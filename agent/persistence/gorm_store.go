package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// discussionModel 映射 discussions 表
type discussionModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Topic     string    `gorm:"type:text;not null"`
	Mode      string    `gorm:"size:32;not null"`
	Status    string    `gorm:"size:32;not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (discussionModel) TableName() string { return "discussions" }

// messageModel 映射 messages 表，(discussion_id, seq) 唯一
type messageModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	DiscussionID string    `gorm:"size:64;not null;uniqueIndex:idx_messages_discussion_seq,priority:1"`
	Seq          int       `gorm:"not null;uniqueIndex:idx_messages_discussion_seq,priority:2"`
	Speaker      string    `gorm:"size:128;not null"`
	Content      string    `gorm:"type:text;not null"`
	Kind         string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (messageModel) TableName() string { return "messages" }

// GormStore 是基于 GORM 的 Store 实现，支持 PostgreSQL、MySQL 和 SQLite
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 用已打开的连接创建存储。表结构由迁移或 AutoMigrate 负责。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 创建或更新表结构，供 SQLite 和测试使用
func (s *GormStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&discussionModel{}, &messageModel{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// Close 不关闭底层连接，连接由 database.PoolManager 管理
func (s *GormStore) Close() error {
	return nil
}

// Ping 检查数据库是否可达
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// =============================================================================
// 🎯 讨论记录
// =============================================================================

// CreateDiscussion 保存新的讨论记录
func (s *GormStore) CreateDiscussion(ctx context.Context, rec *DiscussionRecord) error {
	if err := validateDiscussion(rec); err != nil {
		return err
	}

	m := discussionModel{
		ID:        rec.ID,
		Topic:     rec.Topic,
		Mode:      rec.Mode,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetDiscussion 按 ID 检索讨论记录
func (s *GormStore) GetDiscussion(ctx context.Context, id string) (*DiscussionRecord, error) {
	var m discussionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toRecord(), nil
}

// ListDiscussions 按创建时间倒序分页列出讨论
func (s *GormStore) ListDiscussions(ctx context.Context, offset, limit int) ([]*DiscussionRecord, int, error) {
	offset, limit = normalizePage(offset, limit)

	var total int64
	if err := s.db.WithContext(ctx).Model(&discussionModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []discussionModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]*DiscussionRecord, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, int(total), nil
}

// UpdateStatus 更新讨论状态
func (s *GormStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidInput
	}
	return s.update(ctx, id, "status", string(status))
}

// UpdateMode 更新讨论的选择模式
func (s *GormStore) UpdateMode(ctx context.Context, id string, mode string) error {
	if mode == "" {
		return ErrInvalidInput
	}
	return s.update(ctx, id, "mode", mode)
}

func (s *GormStore) update(ctx context.Context, id, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&discussionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// 💬 发言记录
// =============================================================================

// AppendMessage 追加一条发言记录
func (s *GormStore) AppendMessage(ctx context.Context, msg *MessageRecord) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&discussionModel{}).Where("id = ?", msg.DiscussionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		m := messageModel{
			ID:           msg.ID,
			DiscussionID: msg.DiscussionID,
			Seq:          msg.Seq,
			Speaker:      msg.Speaker,
			Content:      msg.Content,
			Kind:         msg.Kind,
			CreatedAt:    msg.CreatedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}
		return nil
	})
}

// ListMessages 按 seq 顺序返回讨论的全部发言
func (s *GormStore) ListMessages(ctx context.Context, discussionID string) ([]*MessageRecord, error) {
	if _, err := s.GetDiscussion(ctx, discussionID); err != nil {
		return nil, err
	}

	var models []messageModel
	err := s.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*MessageRecord, len(models))
	for i, m := range models {
		out[i] = &MessageRecord{
			ID:           m.ID,
			DiscussionID: m.DiscussionID,
			Seq:          m.Seq,
			Speaker:      m.Speaker,
			Content:      m.Content,
			Kind:         m.Kind,
			CreatedAt:    m.CreatedAt,
		}
	}
	return out, nil
}

func (m *discussionModel) toRecord() *DiscussionRecord {
	return &DiscussionRecord{
		ID:        m.ID,
		Topic:     m.Topic,
		Mode:      m.Mode,
		Status:    Status(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

var _ Store = (*GormStore)(nil)

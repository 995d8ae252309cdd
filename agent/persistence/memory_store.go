package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 是 Store 的内存实现.
// 适合开发和测试。 数据在重新启动时丢失 。
type MemoryStore struct {
	discussions map[string]*DiscussionRecord
	messages    map[string][]*MessageRecord // discussionID -> 按 seq 排序
	mu          sync.RWMutex
	closed      bool
}

// NewMemoryStore 创建新的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		discussions: make(map[string]*DiscussionRecord),
		messages:    make(map[string][]*MessageRecord),
	}
}

// 关闭商店
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查商店是否健康
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// CreateDiscussion 保存新的讨论记录
func (s *MemoryStore) CreateDiscussion(ctx context.Context, rec *DiscussionRecord) error {
	if err := validateDiscussion(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.discussions[rec.ID]; ok {
		return ErrAlreadyExists
	}

	cp := *rec
	s.discussions[rec.ID] = &cp
	return nil
}

// GetDiscussion 按 ID 检索讨论记录
func (s *MemoryStore) GetDiscussion(ctx context.Context, id string) (*DiscussionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, ok := s.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListDiscussions 按创建时间倒序分页列出讨论
func (s *MemoryStore) ListDiscussions(ctx context.Context, offset, limit int) ([]*DiscussionRecord, int, error) {
	offset, limit = normalizePage(offset, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, ErrStoreClosed
	}

	all := make([]*DiscussionRecord, 0, len(s.discussions))
	for _, rec := range s.discussions {
		cp := *rec
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*DiscussionRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// UpdateStatus 更新讨论状态
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidInput
	}
	return s.update(id, func(rec *DiscussionRecord) { rec.Status = status })
}

// UpdateMode 更新讨论的选择模式
func (s *MemoryStore) UpdateMode(ctx context.Context, id string, mode string) error {
	if mode == "" {
		return ErrInvalidInput
	}
	return s.update(id, func(rec *DiscussionRecord) { rec.Mode = mode })
}

func (s *MemoryStore) update(id string, fn func(*DiscussionRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	rec, ok := s.discussions[id]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return nil
}

// AppendMessage 追加一条发言记录
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *MessageRecord) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.discussions[msg.DiscussionID]; !ok {
		return ErrNotFound
	}

	list := s.messages[msg.DiscussionID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].Seq >= msg.Seq })
	if idx < len(list) && list[idx].Seq == msg.Seq {
		return ErrAlreadyExists
	}

	// 如果没有设定则生成 ID
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	cp := *msg
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = &cp
	s.messages[msg.DiscussionID] = list
	return nil
}

// ListMessages 按 seq 顺序返回讨论的全部发言
func (s *MemoryStore) ListMessages(ctx context.Context, discussionID string) ([]*MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := s.discussions[discussionID]; !ok {
		return nil, ErrNotFound
	}

	list := s.messages[discussionID]
	out := make([]*MessageRecord, len(list))
	for i, m := range list {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)

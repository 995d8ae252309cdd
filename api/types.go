package api

import (
	"time"

	"github.com/BaSui01/agentpanel/agent/discussion"
)

// =============================================================================
// 讨论请求类型
// =============================================================================

// CreateDiscussionRequest 创建讨论请求
// @Description 创建讨论请求结构
type CreateDiscussionRequest struct {
	// 讨论 ID，留空时自动生成
	ID string `json:"id,omitempty" example:"d-42"`
	// 讨论话题
	Topic string `json:"topic" example:"Should cities ban cars?" binding:"required"`
	// 初始选择模式（round_robin、adaptive、auto）
	Mode string `json:"mode,omitempty" example:"adaptive"`
}

// AgentSpec 自定义角色
type AgentSpec struct {
	Name        string            `json:"name" binding:"required"`
	Persona     string            `json:"persona"`
	DisplayName string            `json:"display_name,omitempty"`
	Stance      string            `json:"stance,omitempty"`
	Personality string            `json:"personality,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitRequest 初始化讨论请求；三种角色来源互斥，全部留空时按话题生成角色
// @Description 初始化讨论请求结构
type InitRequest struct {
	// 内置阵容名称
	Roster string `json:"roster,omitempty" example:"classic"`
	// 自定义角色
	Agents []AgentSpec `json:"agents,omitempty"`
	// 自动生成的角色数
	RoleCount int `json:"role_count,omitempty" example:"3"`
}

// ModeRequest 切换选择模式请求
type ModeRequest struct {
	Mode string `json:"mode" example:"round_robin" binding:"required"`
}

// MessageRequest 人类插话请求
type MessageRequest struct {
	Content string `json:"content" example:"What about public transport?" binding:"required"`
}

// =============================================================================
// 讨论响应类型
// =============================================================================

// DiscussionInfo 讨论概要
// @Description 讨论信息结构
type DiscussionInfo struct {
	ID        string             `json:"id"`
	Topic     string             `json:"topic"`
	Mode      string             `json:"mode"`
	Status    string             `json:"status"`
	State     string             `json:"state,omitempty"`
	Live      bool               `json:"live"`
	TurnCount int                `json:"turn_count"`
	MaxTurns  int                `json:"max_turns,omitempty"`
	Agents    []discussion.Agent `json:"agents,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// DiscussionList 讨论分页列表
type DiscussionList struct {
	Discussions []DiscussionInfo `json:"discussions"`
	Total       int              `json:"total"`
	Offset      int              `json:"offset"`
	Limit       int              `json:"limit"`
}

// MessageInfo 一条发言
type MessageInfo struct {
	Seq       int       `json:"seq"`
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageList 发言列表，按序号升序
type MessageList struct {
	DiscussionID string        `json:"discussion_id"`
	Messages     []MessageInfo `json:"messages"`
}

// TurnResponse 推进一轮的结果
// @Description 讨论轮次结果
type TurnResponse struct {
	// 达到轮次上限时为 true，此时无发言
	Done      bool         `json:"done"`
	Turn      int          `json:"turn,omitempty"`
	Speaker   string       `json:"speaker,omitempty"`
	Strategy  string       `json:"strategy,omitempty"`
	Message   *MessageInfo `json:"message,omitempty"`
	TurnCount int          `json:"turn_count"`
	State     string       `json:"state"`
}

// EventMessage WebSocket 推送的事件
type EventMessage struct {
	Type         string       `json:"type"` // "utterance", "status"
	DiscussionID string       `json:"discussion_id"`
	Message      *MessageInfo `json:"message,omitempty"`
	Status       string       `json:"status,omitempty"`
}

// Event types.
const (
	EventUtterance = "utterance"
	EventStatus    = "status"
)

// MessageFromUtterance 转换为 API 表示
func MessageFromUtterance(u discussion.Utterance) MessageInfo {
	return MessageInfo{
		Seq:       u.Seq,
		Speaker:   u.SpeakerID,
		Content:   u.Text,
		Kind:      string(u.Kind),
		CreatedAt: u.CreatedAt,
	}
}

// Package mocks 提供测试用的 llm.Provider 替身。
//
// MockProvider 按脚本逐次回放回复或错误，脚本耗尽后使用默认回复，
// 并记录每次请求供断言发言/评审/角色生成的提示词。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentpanel/llm"
)

// Reply 是脚本中的一步：Err 非空时返回错误，否则返回 Text
type Reply struct {
	Text string
	Err  error
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider 是 llm.Provider 的脚本化实现，并发安全
type MockProvider struct {
	mu sync.Mutex

	fallback  Reply
	script    []Reply
	delay     time.Duration
	unhealthy bool
	calls     []MockProviderCall
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider 创建默认回复为 "Mock response" 的 Provider
func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: Reply{Text: "Mock response"}}
}

// NewSuccessProvider 总是返回 text
func NewSuccessProvider(text string) *MockProvider {
	return NewMockProvider().WithResponse(text)
}

// NewErrorProvider 总是返回 err
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewScriptedProvider 依次返回 texts，之后回到默认回复
func NewScriptedProvider(texts ...string) *MockProvider {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewMockProvider().WithScript(replies...)
}

// WithResponse 设置脚本耗尽后的回复
func (m *MockProvider) WithResponse(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = Reply{Text: text}
	return m
}

// WithError 设置脚本耗尽后返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = Reply{Err: err}
	return m
}

// WithScript 追加按顺序消费的回复
func (m *MockProvider) WithScript(replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// WithDelay 让每次调用先等待 d，期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithUnhealthy 让 HealthCheck 失败
func (m *MockProvider) WithUnhealthy() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy = true
	return m
}

// Name 返回 "mock"
func (m *MockProvider) Name() string { return "mock" }

// HealthCheck 按 WithUnhealthy 返回结果
func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unhealthy {
		return &llm.HealthStatus{Healthy: false}, errors.New("mock provider: unhealthy")
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 回放下一步脚本
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.record(MockProviderCall{Request: req, Error: ctx.Err()})
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	reply := m.fallback
	if len(m.script) > 0 {
		reply = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if reply.Err != nil {
		m.record(MockProviderCall{Request: req, Error: reply.Err})
		return nil, reply.Err
	}

	resp := &llm.ChatResponse{
		ID:       "mock-response",
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: reply.Text},
		}},
		CreatedAt: time.Now(),
	}
	m.record(MockProviderCall{Request: req, Response: resp})
	return resp, nil
}

func (m *MockProvider) record(call MockProviderCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// GetCalls 返回调用记录的副本
func (m *MockProvider) GetCalls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

// GetCallCount 返回 Completion 调用次数
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall 返回最后一次调用，没有调用时为 nil
func (m *MockProvider) GetLastCall() *MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 讨论引擎与角色生成测试共用的上下文与请求检查工具
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	prompt := testutil.LastUserContent(provider.GetLastCall().Request)
//
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentpanel/llm"
)

// TestContext 返回 30 秒超时的测试上下文，测试结束时取消
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// LastUserContent 返回请求中最后一条 user 消息，即发言或评审提示词
func LastUserContent(req *llm.ChatRequest) string {
	return lastContent(req, llm.RoleUser)
}

// SystemContent 返回请求中最后一条 system 消息
func SystemContent(req *llm.ChatRequest) string {
	return lastContent(req, llm.RoleSystem)
}

func lastContent(req *llm.ChatRequest, role llm.Role) string {
	if req == nil {
		return ""
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == role {
			return req.Messages[i].Content
		}
	}
	return ""
}

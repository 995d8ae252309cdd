// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 agentpanel 测试的共享工具。

# 核心能力

  - TestContext: 30 秒超时并自动 Cleanup 的上下文
  - LastUserContent / SystemContent: 取出发送给模型的提示词，
    用于断言发言、评审与角色生成的提示词内容

# 子包

  - testutil/mocks: MockProvider，按 Reply 脚本逐次回放回复或错误，
    支持延迟与健康检查失败注入，并记录每次请求

# 使用示例

	provider := mocks.NewMockProvider().WithScript(
		mocks.Reply{Err: errors.New("503")},
		mocks.Reply{Text: "Philosopher"},
	)
	backend := discussion.NewLLMBackend(provider, discussion.DefaultSpeechSettings())
*/
package testutil

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentpanel 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包。讨论编排、持久化、HTTP
接口与命令行均通过这里的结构化错误进行交互，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误，含 HTTP 状态码、Retryable、Cause

# 错误码

  - NOT_CONFIGURED      — 在 Init 之前或讨论结束之后调用变更操作
  - BACKEND_ERROR       — 生成或评审调用失败/超时，可重试，不消耗轮次
  - SELECTION_AMBIGUOUS — 仅内部使用，总是回退到注册表首位
  - PERSISTENCE_ERROR   — 持久化写入失败，不回滚内存中的追加
*/
package types

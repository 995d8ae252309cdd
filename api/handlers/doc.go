// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 AgentPanel HTTP API 的请求处理器实现。

# 概述

handlers 包实现讨论的创建、初始化、推进、人类插话、模式切换与事件推送，
以及健康检查和统一的响应/错误处理。所有 Handler 遵循标准 net/http 接口，
路由使用 Go 1.22 的 ServeMux 方法与路径模式。

# 核心类型

  - DiscussionHandler — /api/v1/discussions 下的全部讨论端点
  - EventHub          — 讨论事件广播，同时实现 discussion.Sink
  - HealthHandler     — 服务健康检查（/health, /healthz, /ready）
  - Response          — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo         — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 错误码映射

  - NOT_CONFIGURED    → 409（未初始化、已结束或重复初始化）
  - BACKEND_ERROR     → 502（轮次未消耗，可重试）
  - PERSISTENCE_ERROR → 500（结果已生效，随错误一并返回）
  - INVALID_REQUEST   → 400，NOT_FOUND → 404

# 讨论生命周期

POST /discussions 保存话题并创建句柄；POST /{id}/init 选择角色来源
（内置阵容、自定义角色或按话题生成）并开始讨论；POST /{id}/turns
每次推进一轮，达到上限后返回 done=true 并回收句柄，之后的调用返回 409。
GET /{id}/events 以 WebSocket 推送发言与状态变化。
*/
package handlers

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 AgentPanel 的命令行入口。

# 概述

cmd/agentpanel 是多智能体讨论面板的可执行程序，既可以作为 HTTP
服务运行，也可以在终端里直接主持一场讨论。配置来自 YAML 文件与
AGENTPANEL_ 前缀的环境变量，日志统一使用 zap。

# 子命令

  - serve   — 启动 HTTP API（讨论管理、事件推送、健康检查、/metrics）
  - chat    — 交互式终端讨论，空行推进一轮，普通输入作为人类发言
  - migrate — 管理数据库存储使用的 schema（up/down/steps/force/status）
  - version — 输出构建信息
  - health  — 探测运行中服务的 /health

# 核心类型

  - Server      — 组装讨论管理器、存储、指标与遥测，负责优雅关闭
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - chatSession — 终端讨论循环，按发言者着色输出

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → RequestLogger →
CORS → RateLimiter（可选）→ MetricsMiddleware。指标中间件位于最内层，
以便使用路由模式作为 path 标签。
*/
package main

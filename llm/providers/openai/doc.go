// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 实现基于 OpenAI Chat Completions API（/v1/chat/completions）的
llm.Provider。任何兼容该协议的服务（OpenAI、Ollama、vLLM、DeepSeek 等）
都可以通过 BaseURL 接入；以 /v1 结尾的 BaseURL 不会重复拼接 /v1。

# 核心结构体

  - Provider — 同步 Completion 与基于 /v1/models 的 HealthCheck

# 错误语义

HTTP 错误经 providers.MapHTTPError 映射为 llm.Error：429、5xx、529、
网络错误与超时标记为可重试；401/403/400 不可重试。配合
providers.RetryableProvider 使用即可获得指数退避重试。
*/
package openai

// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供模型服务商适配的公共基础：OpenAI 兼容的请求/响应
结构、HTTP 错误映射与带重试的 Provider 包装器。

# 核心类型

  - BaseProviderConfig / OpenAIConfig — 服务商连接配置
  - OpenAICompat* — OpenAI 兼容 API 的请求、响应与错误结构体
  - RetryableProvider — 基于 llm/retry 指数退避的 Provider 包装器

# 核心函数

  - MapHTTPError — HTTP 状态码到 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 解析 {"error":{...}} 错误体
  - ConvertMessagesToOpenAI / ToLLMChatResponse — 格式转换
  - ChooseModel — 请求 > 默认 > 兜底
*/
package providers

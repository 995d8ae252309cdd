// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name。发言生成、下一位发言者
    裁决与角色生成都通过它访问模型服务。

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [Error]：结构化错误，携带错误码、HTTP 状态与可重试标记
  - [HealthStatus]：健康检查状态

# 相关子包

  - llm/providers：OpenAI 兼容协议的公共类型、错误映射与重试包装器
  - llm/providers/openai：Chat Completions 实现
  - llm/retry：指数退避重试
*/
package llm

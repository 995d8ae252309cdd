// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 roles 为讨论生成发言者阵容。

# 概述

Generator 根据话题请求模型生成若干立场鲜明的角色（JSON），
解析后清洗名称、渲染人设模板，得到可直接放入 discussion.Registry
的 Agent 列表。生成失败时 GenerateOrFallback 返回
Supporter / Critic / Mediator 兜底阵容。

# 内置阵容

  - classic：Philosopher / Scientist / Artist（默认）
  - debate：Supporter / Critic / Mediator（兜底）
  - campus：Lake Mendota / Old Oak Tree / Future Autonomous Car
*/
package roles

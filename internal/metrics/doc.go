// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 请求、
讨论轮次、后端调用与数据库连接池四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用
promauto.With 注册到调用方指定的 Registry（默认为全局 Registry），
所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，讨论相关的记录方法只接受字符串和时长参数，
    因此可以直接作为 discussion.Observer 注入讨论引擎。

# 主要能力

  - HTTP 指标：请求总数（按状态码段）、耗时与响应大小，由 HTTP 中间件记录。
  - 讨论指标：轮次（按模式与选择策略）、生成/评审调用次数与耗时、
    自适应回退次数、人类发言数、状态转换与存活讨论数。
  - 数据库指标：RegisterDBStats 导出 database/sql 连接池统计。
*/
package metrics

// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，支持 PostgreSQL、MySQL
与 SQLite 三种驱动，并带有后台健康检查与统计信息采集。

# 概述

本包通过 PoolManager 封装 GORM 与 database/sql 的连接池配置，
统一管理连接生命周期、空闲回收与最大连接数限制。讨论存储
（agent/persistence.GormStore）与迁移工具（internal/migration）
共享同一个连接池。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、SQLDB()、Ping()、GetStats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - PoolStats：连接池运行指标。

# 主要能力

  - 方言选择：Dialector/Open 按驱动名构造 GORM 方言，SQLite 采用纯 Go 实现。
  - 健康检查：后台定时 PingContext 探活，Close 时停止。
  - 统计采集：GetStats 返回结构化的连接池运行指标，供 /health 展示。
*/
package database

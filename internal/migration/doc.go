// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供讨论存储表结构的迁移管理，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件（discussions 与
messages 两张表），结合 golang-migrate 引擎实现版本化的 Schema 管理。
SQLite 使用纯 Go 驱动打开连接，无需 CGO。

# 核心接口与类型

  - Migrator：迁移器接口，定义 Up/Down/Steps/Force/Version/Status/Info/Close。
  - DefaultMigrator：Migrator 的默认实现，封装 golang-migrate 实例。
  - Config：迁移配置，包含数据库类型、连接 URL、迁移表名与锁超时。
  - MigrationStatus / MigrationInfo：迁移状态与摘要信息。
  - CLI：`agentpanel migrate` 子命令使用的终端输出层。

# 主要能力

  - 工厂函数：NewMigratorFromDatabaseConfig / NewMigratorFromURL。
  - 辅助工具：ParseDatabaseType 解析类型字符串，BuildDatabaseURL
    按方言拼接连接 URL。
*/
package migration

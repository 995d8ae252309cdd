// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供讨论元数据与发言记录的持久化存储抽象及多后端实现。

# 概述

讨论引擎本身只在内存中维护对话记录，并在每次追加后调用 Sink。
本包把 Sink 落到可插拔的存储后端上，使讨论在进程重启后仍可查询，
上层 HTTP 服务也可以分页浏览历史讨论。

# 核心接口

  - DiscussionStore: 讨论元数据的创建、查询、分页与状态/模式更新。
  - TranscriptStore: 发言追加与按 seq 顺序读取，(discussion_id, seq) 唯一。
  - Store: 组合以上两者，并提供 Close 与 Ping 健康检查。

# 后端实现

  - MemoryStore: 进程内存储，适合开发与测试。
  - RedisStore: 基于 go-redis，讨论以 JSON 存储并由有序集合按创建时间索引，
    发言存于以 seq 为字段的哈希中。
  - GormStore: 基于 GORM，支持 PostgreSQL、MySQL 与 SQLite，
    表结构由 internal/migration 或 AutoMigrate 创建。

# 与讨论引擎集成

NewSink 将任意 TranscriptStore 适配为 discussion.Sink：

	store := persistence.NewMemoryStore()
	d := discussion.New(id, backend, cfg, discussion.WithSink(persistence.NewSink(store)))

写入失败会以 PERSISTENCE_ERROR 返回给调用方，但不会回滚已追加的发言。
*/
package persistence

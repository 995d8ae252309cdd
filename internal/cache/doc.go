// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的 JSON 缓存。

Manager 为所有键加上统一前缀，未命中时返回 ErrCacheMiss。
agentpanel 用它缓存按话题生成的讨论角色（见 agent/roles 的
CachedGenerator），避免同一话题重复调用模型生成角色。

NewManager 自行建立连接并在 Close 时释放；NewManagerWithClient
复用外部客户端（例如持久化层的 Redis 连接）。
*/
package cache

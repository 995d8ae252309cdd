// Package config 提供 AgentPanel 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → AGENTPANEL_ 前缀环境变量 的顺序合并，
// 覆盖服务、讨论引擎、LLM、存储、数据库、Redis、日志与遥测各部分。
package config

// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 agentpanel HTTP 服务的生命周期。

# 核心类型

  - Manager：封装 net/http.Server 与监听器，提供 Start/Run/Shutdown。
  - Config：监听地址与各类超时，可由 ConfigFromServer 从
    config.ServerConfig 构造。

# 使用方式

serve 命令在 errgroup 中调用 Run(ctx)：ctx 被信号取消后执行
优雅关闭；服务异常退出时错误会从 Run 返回。
*/
package server

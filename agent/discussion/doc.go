// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 discussion 实现多方讨论的轮次编排器。

# 概述

discussion 负责一场讨论中"谁下一个发言"的全部决策：选出发言者、
为其组装有界上下文、调用生成后端、追加到转录并推进轮次，直到达到
最大轮次后进入终止状态。人类发言可以随时插入，只影响下一轮的
优先级信号，不计入轮次。

# 状态机

	Uninitialized --Init--> Running --第 MaxTurns 轮成功--> Completed

Completed 之后第一次 Advance 返回终止哨兵（TurnResult.Done），
再次调用返回 NOT_CONFIGURED。生成失败不消耗轮次，可直接重试。

# 核心接口

  - Backend：生成一位发言者的发言
  - Judge：自适应模式下裁决下一位发言者，返回自由文本
  - Sink：每次追加后同步写入持久化
  - Selector：选择策略，内置 RoundRobinSelector 与 AdaptiveSelector
  - Observer：生命周期事件，由 internal/metrics 实现

# 主要能力

  - Registry：不可变的有序发言者集合，ResolveSpeaker 将评审答案
    映射到具体发言者（精确 → 归一化 → 子串 → 首位）
  - Transcript：只追加的转录，序号从 0 开始且无空洞
  - AdaptiveSelector：向评审提供人设摘要、发言频率、最近发言、
    @提及与人类优先信号；评审失败时本轮回退为轮询
  - Manager：宿主持有的讨论集合，以不透明句柄访问
  - LLMBackend / LLMJudge：基于 llm.Provider 的实现
*/
package discussion

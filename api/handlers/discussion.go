package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/agent/persistence"
	"github.com/BaSui01/agentpanel/agent/roles"
	"github.com/BaSui01/agentpanel/api"
	"github.com/BaSui01/agentpanel/internal/ctxkeys"
	"github.com/BaSui01/agentpanel/types"
)

// =============================================================================
// 💬 讨论 Handler
// =============================================================================

// RoleSource 按话题生成角色；失败时自行回退，永不返回空
type RoleSource interface {
	GenerateOrFallback(ctx context.Context, topic string, n int) []discussion.Agent
}

// ActiveGauge 接收存活讨论数
type ActiveGauge interface {
	SetActiveDiscussions(n int)
}

// DiscussionHandlerConfig 讨论接口配置
type DiscussionHandlerConfig struct {
	// 同时存活的讨论上限，<=0 表示不限制
	MaxDiscussions int
	// 未指定角色时生成的角色数
	DefaultRoles int
	// 单次生成角色数上限
	MaxRoles int
	// 没有 RoleSource 时使用的内置阵容
	DefaultRoster string
	// 列表默认分页大小
	PageSize int
	// 已结束但终止信号未被取走的讨论保留多久，<=0 表示立即回收
	RetireGrace time.Duration
}

const maxPageSize = 100

// DefaultDiscussionHandlerConfig 返回默认配置
func DefaultDiscussionHandlerConfig() DiscussionHandlerConfig {
	return DiscussionHandlerConfig{
		MaxDiscussions: 1000,
		DefaultRoles:   3,
		MaxRoles:       8,
		DefaultRoster:  roles.DefaultRosterName,
		PageSize:       20,
		RetireGrace:    10 * time.Minute,
	}
}

// DiscussionHandler 讨论的 HTTP 接口
type DiscussionHandler struct {
	manager *discussion.Manager
	store   persistence.Store
	roles   RoleSource
	events  *EventHub
	gauge   ActiveGauge
	config  DiscussionHandlerConfig
	logger  *zap.Logger
}

// NewDiscussionHandler 创建讨论处理器。roles 与 events 可为 nil。
func NewDiscussionHandler(
	manager *discussion.Manager,
	store persistence.Store,
	roleSource RoleSource,
	events *EventHub,
	config DiscussionHandlerConfig,
	logger *zap.Logger,
) *DiscussionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NewEventHub(0, logger)
	}
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	if config.MaxRoles <= 0 {
		config.MaxRoles = 8
	}
	if config.DefaultRoles <= 0 {
		config.DefaultRoles = 3
	}
	return &DiscussionHandler{
		manager: manager,
		store:   store,
		roles:   roleSource,
		events:  events,
		config:  config,
		logger:  logger.With(zap.String("component", "discussion_handler")),
	}
}

// WithGauge 设置存活讨论数指标
func (h *DiscussionHandler) WithGauge(g ActiveGauge) *DiscussionHandler {
	h.gauge = g
	return h
}

// Events 返回事件中心
func (h *DiscussionHandler) Events() *EventHub { return h.events }

// Register 在 mux 上注册 /api/v1/discussions 路由
func (h *DiscussionHandler) Register(mux *http.ServeMux) {
	const base = "/api/v1/discussions"
	mux.HandleFunc("POST "+base, h.HandleCreate)
	mux.HandleFunc("GET "+base, h.HandleList)
	mux.HandleFunc("GET "+base+"/{id}", h.HandleGet)
	mux.HandleFunc("POST "+base+"/{id}/init", h.HandleInit)
	mux.HandleFunc("POST "+base+"/{id}/mode", h.HandleSetMode)
	mux.HandleFunc("POST "+base+"/{id}/turns", h.HandleAdvance)
	mux.HandleFunc("GET "+base+"/{id}/messages", h.HandleListMessages)
	mux.HandleFunc("POST "+base+"/{id}/messages", h.HandleInjectHuman)
	mux.HandleFunc("GET "+base+"/{id}/events", h.HandleEvents)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleCreate 创建讨论
// @Summary 创建讨论
// @Tags 讨论
// @Accept json
// @Produce json
// @Param request body api.CreateDiscussionRequest true "讨论参数"
// @Success 201 {object} Response{data=api.DiscussionInfo}
// @Failure 400 {object} Response
// @Failure 503 {object} Response
// @Router /api/v1/discussions [post]
func (h *DiscussionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	if !ValidateContentType(w, r, logger) {
		return
	}
	var req api.CreateDiscussionRequest
	if err := DecodeJSONBody(w, r, &req, logger); err != nil {
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		WriteError(w, types.InvalidRequest("topic is required"), logger)
		return
	}
	var opts []discussion.Option
	mode := ""
	if req.Mode != "" {
		m, err := discussion.ParseMode(req.Mode)
		if err != nil {
			WriteAnyError(w, err, logger)
			return
		}
		mode = string(m)
		opts = append(opts, discussion.WithMode(m))
	}
	if h.config.MaxDiscussions > 0 && h.manager.Len() >= h.config.MaxDiscussions {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "too many live discussions").WithRetryable(true), logger)
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}
	if _, live := h.manager.Get(id); live {
		WriteError(w, types.InvalidRequest("discussion %s already exists", id), logger)
		return
	}

	opts = append(opts, discussion.WithSink(discussion.MultiSink(persistence.NewSink(h.store), h.events)))
	d, err := h.manager.Create(id, opts...)
	if err != nil {
		WriteAnyError(w, err, logger)
		return
	}
	if mode == "" {
		mode = string(d.Mode())
	}

	rec := &persistence.DiscussionRecord{
		ID:     id,
		Topic:  topic,
		Mode:   mode,
		Status: persistence.StatusCreated,
	}
	if err := h.store.CreateDiscussion(r.Context(), rec); err != nil {
		h.manager.Remove(id)
		if errors.Is(err, persistence.ErrAlreadyExists) {
			WriteError(w, types.InvalidRequest("discussion %s already exists", id), logger)
			return
		}
		WriteError(w, persistenceError("failed to create discussion", err), logger)
		return
	}
	h.updateGauge()

	logger.Info("discussion created", zap.String("discussion_id", id), zap.String("mode", mode))
	WriteCreated(w, h.info(rec, d))
}

// HandleList 分页列出讨论，最新的在前
// @Summary 列出讨论
// @Tags 讨论
// @Produce json
// @Param offset query int false "偏移"
// @Param limit query int false "数量"
// @Success 200 {object} Response{data=api.DiscussionList}
// @Router /api/v1/discussions [get]
func (h *DiscussionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	offset, ok := queryInt(w, r, "offset", 0, logger)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", h.config.PageSize, logger)
	if !ok {
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	records, total, err := h.store.ListDiscussions(r.Context(), offset, limit)
	if err != nil {
		WriteError(w, persistenceError("failed to list discussions", err), logger)
		return
	}

	list := api.DiscussionList{
		Discussions: make([]api.DiscussionInfo, 0, len(records)),
		Total:       total,
		Offset:      offset,
		Limit:       limit,
	}
	for _, rec := range records {
		d, _ := h.manager.Get(rec.ID)
		list.Discussions = append(list.Discussions, h.info(rec, d))
	}
	WriteSuccess(w, list)
}

// HandleGet 获取讨论详情
// @Summary 获取讨论
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response{data=api.DiscussionInfo}
// @Failure 404 {object} Response
// @Router /api/v1/discussions/{id} [get]
func (h *DiscussionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	rec, err := h.store.GetDiscussion(r.Context(), id)
	if err != nil {
		WriteError(w, lookupError(id, err), logger)
		return
	}
	d, _ := h.manager.Get(id)
	WriteSuccess(w, h.info(rec, d))
}

// HandleInit 配置角色并开始讨论
// @Summary 初始化讨论
// @Tags 讨论
// @Accept json
// @Produce json
// @Param id path string true "讨论 ID"
// @Param request body api.InitRequest false "角色来源"
// @Success 200 {object} Response{data=api.DiscussionInfo}
// @Failure 409 {object} Response "讨论已初始化或已结束"
// @Router /api/v1/discussions/{id}/init [post]
func (h *DiscussionHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	var req api.InitRequest
	if r.ContentLength != 0 {
		if !ValidateContentType(w, r, logger) {
			return
		}
		if err := DecodeJSONBody(w, r, &req, logger); err != nil {
			return
		}
	}

	d, rec, ok := h.live(w, r, id, logger)
	if !ok {
		return
	}
	if d.State() != discussion.StateUninitialized {
		WriteError(w, types.NotConfigured("discussion %s is already %s", id, d.State()), logger)
		return
	}

	agents, err := h.resolveAgents(r.Context(), rec.Topic, req)
	if err != nil {
		WriteAnyError(w, err, logger)
		return
	}
	registry, err := discussion.NewRegistry(agents...)
	if err != nil {
		WriteAnyError(w, err, logger)
		return
	}

	_, err = d.Init(r.Context(), rec.Topic, registry)
	if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
		WriteAnyError(w, err, logger)
		return
	}
	rec.Status = persistence.StatusRunning
	if statusErr := h.setStatus(r.Context(), id, persistence.StatusRunning); statusErr != nil && err == nil {
		err = statusErr
	}

	logger.Info("discussion initialized",
		zap.String("discussion_id", id),
		zap.Strings("agents", registry.Names()))
	h.writeResult(w, h.info(rec, d), err, logger)
}

// HandleSetMode 切换选择模式
// @Summary 切换选择模式
// @Tags 讨论
// @Accept json
// @Produce json
// @Param id path string true "讨论 ID"
// @Param request body api.ModeRequest true "模式"
// @Success 200 {object} Response{data=api.DiscussionInfo}
// @Router /api/v1/discussions/{id}/mode [post]
func (h *DiscussionHandler) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	if !ValidateContentType(w, r, logger) {
		return
	}
	var req api.ModeRequest
	if err := DecodeJSONBody(w, r, &req, logger); err != nil {
		return
	}
	mode, err := discussion.ParseMode(req.Mode)
	if err != nil {
		WriteAnyError(w, err, logger)
		return
	}

	d, rec, ok := h.live(w, r, id, logger)
	if !ok {
		return
	}
	if err := d.SetMode(mode); err != nil {
		WriteAnyError(w, err, logger)
		return
	}

	rec.Mode = string(mode)
	var result error
	if err := h.store.UpdateMode(r.Context(), id, string(mode)); err != nil {
		logger.Error("failed to persist mode", zap.String("discussion_id", id), zap.Error(err))
		result = persistenceError("failed to persist mode", err)
	}
	h.writeResult(w, h.info(rec, d), result, logger)
}

// HandleAdvance 推进一轮。达到轮次上限后返回 done=true 并回收讨论句柄。
// @Summary 推进一轮
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response{data=api.TurnResponse}
// @Failure 409 {object} Response "讨论未初始化或已结束"
// @Failure 502 {object} Response "生成失败，轮次未消耗"
// @Router /api/v1/discussions/{id}/turns [post]
func (h *DiscussionHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	d, _, ok := h.live(w, r, id, logger)
	if !ok {
		return
	}

	res, err := d.Advance(r.Context())
	if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
		WriteAnyError(w, err, logger)
		return
	}

	resp := api.TurnResponse{
		Done:      res.Done,
		TurnCount: d.TurnCount(),
		State:     string(d.State()),
	}
	if res.Done {
		h.retire(r.Context(), id, logger)
		logger.Info("discussion finished", zap.String("discussion_id", id), zap.Int("turns", resp.TurnCount))
		WriteSuccess(w, resp)
		return
	}

	msg := api.MessageFromUtterance(res.Utterance)
	resp.Turn = res.Turn
	resp.Speaker = res.Speaker.Name
	resp.Strategy = res.Strategy
	resp.Message = &msg

	if d.State() == discussion.StateCompleted {
		if statusErr := h.setStatus(r.Context(), id, persistence.StatusCompleted); statusErr != nil && err == nil {
			err = statusErr
		}
	}
	h.writeResult(w, resp, err, logger)
}

// HandleInjectHuman 人类插话，不计入轮次
// @Summary 人类插话
// @Tags 讨论
// @Accept json
// @Produce json
// @Param id path string true "讨论 ID"
// @Param request body api.MessageRequest true "发言内容"
// @Success 201 {object} Response{data=api.MessageInfo}
// @Router /api/v1/discussions/{id}/messages [post]
func (h *DiscussionHandler) HandleInjectHuman(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	if !ValidateContentType(w, r, logger) {
		return
	}
	var req api.MessageRequest
	if err := DecodeJSONBody(w, r, &req, logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteError(w, types.InvalidRequest("content is required"), logger)
		return
	}

	d, _, ok := h.live(w, r, id, logger)
	if !ok {
		return
	}
	u, err := d.InjectHuman(r.Context(), req.Content)
	if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
		WriteAnyError(w, err, logger)
		return
	}

	msg := api.MessageFromUtterance(u)
	if err != nil {
		WriteErrorWithData(w, types.WrapError(err), msg, logger)
		return
	}
	WriteCreated(w, msg)
}

// HandleListMessages 按序号返回讨论记录
// @Summary 讨论记录
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response{data=api.MessageList}
// @Router /api/v1/discussions/{id}/messages [get]
func (h *DiscussionHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	list := api.MessageList{DiscussionID: id, Messages: []api.MessageInfo{}}

	// 存活的讨论以内存记录为准，持久化失败时两者可能不一致
	if d, ok := h.manager.Get(id); ok {
		for _, u := range d.Transcript() {
			list.Messages = append(list.Messages, api.MessageFromUtterance(u))
		}
		WriteSuccess(w, list)
		return
	}

	if _, err := h.store.GetDiscussion(r.Context(), id); err != nil {
		WriteError(w, lookupError(id, err), logger)
		return
	}
	records, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		WriteError(w, persistenceError("failed to list messages", err), logger)
		return
	}
	for _, m := range records {
		list.Messages = append(list.Messages, api.MessageFromUtterance(m.Utterance()))
	}
	WriteSuccess(w, list)
}

// HandleEvents 以 WebSocket 推送讨论事件，讨论结束时正常关闭连接
// @Summary 讨论事件流
// @Tags 讨论
// @Param id path string true "讨论 ID"
// @Router /api/v1/discussions/{id}/events [get]
func (h *DiscussionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	if _, _, ok := h.live(w, r, id, logger); !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.String("discussion_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.events.Subscribe(id)
	defer h.events.Unsubscribe(sub)

	logger.Debug("event stream opened", zap.String("discussion_id", id))
	if err := streamEvents(r.Context(), conn, sub, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("event stream ended", zap.String("discussion_id", id), zap.Error(err))
	}
}

// RetireCompleted 回收已结束的讨论。终止信号尚未被取走的讨论在 RetireGrace 之后才回收
func (h *DiscussionHandler) RetireCompleted(ctx context.Context) []string {
	ids := h.manager.RetireCompleted(h.config.RetireGrace)
	for _, id := range ids {
		if err := h.store.UpdateStatus(ctx, id, persistence.StatusCompleted); err != nil {
			h.logger.Warn("failed to mark retired discussion completed", zap.String("discussion_id", id), zap.Error(err))
		}
		h.events.Close(id)
	}
	if len(ids) > 0 {
		h.updateGauge()
		h.logger.Info("completed discussions retired", zap.Int("count", len(ids)))
	}
	return ids
}

// =============================================================================
// 🔧 内部辅助
// =============================================================================

// live 返回存活讨论及其记录；不存活时写出错误响应
func (h *DiscussionHandler) live(w http.ResponseWriter, r *http.Request, id string, logger *zap.Logger) (*discussion.Discussion, *persistence.DiscussionRecord, bool) {
	rec, err := h.store.GetDiscussion(r.Context(), id)
	if err != nil {
		WriteError(w, lookupError(id, err), logger)
		return nil, nil, false
	}
	d, ok := h.manager.Get(id)
	if !ok {
		if rec.Status == persistence.StatusCompleted {
			WriteError(w, types.NotConfigured("discussion %s is completed", id), logger)
		} else {
			WriteError(w, types.NotConfigured("discussion %s is not live on this server", id), logger)
		}
		return nil, nil, false
	}
	return d, rec, true
}

func (h *DiscussionHandler) resolveAgents(ctx context.Context, topic string, req api.InitRequest) ([]discussion.Agent, error) {
	sources := 0
	if req.Roster != "" {
		sources++
	}
	if len(req.Agents) > 0 {
		sources++
	}
	if req.RoleCount != 0 {
		sources++
	}
	if sources > 1 {
		return nil, types.InvalidRequest("roster, agents and role_count are mutually exclusive")
	}

	switch {
	case req.Roster != "":
		return roles.RosterByName(req.Roster)
	case len(req.Agents) > 0:
		agents := make([]discussion.Agent, len(req.Agents))
		for i, spec := range req.Agents {
			agents[i] = agentFromSpec(topic, spec)
		}
		return agents, nil
	}

	n := req.RoleCount
	if n == 0 {
		n = h.config.DefaultRoles
	}
	if n < 1 || n > h.config.MaxRoles {
		return nil, types.InvalidRequest("role_count must be between 1 and %d", h.config.MaxRoles)
	}
	if h.roles == nil {
		return roles.RosterByName(h.config.DefaultRoster)
	}
	return h.roles.GenerateOrFallback(ctx, topic, n), nil
}

func agentFromSpec(topic string, spec api.AgentSpec) discussion.Agent {
	persona := strings.TrimSpace(spec.Persona)
	if persona == "" {
		persona = roles.Persona(topic, spec.Name, spec.Stance, spec.Personality)
	}
	return discussion.Agent{
		Name:        spec.Name,
		Persona:     persona,
		DisplayName: spec.DisplayName,
		Stance:      spec.Stance,
		Personality: spec.Personality,
		Metadata:    spec.Metadata,
	}
}

func (h *DiscussionHandler) setStatus(ctx context.Context, id string, status persistence.Status) error {
	if err := h.store.UpdateStatus(ctx, id, status); err != nil {
		h.logger.Error("failed to persist status",
			zap.String("discussion_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return persistenceError("failed to persist status", err)
	}
	h.events.PublishStatus(id, string(status))
	return nil
}

// retire 在终止信号之后回收讨论句柄
func (h *DiscussionHandler) retire(ctx context.Context, id string, logger *zap.Logger) {
	if err := h.setStatus(ctx, id, persistence.StatusCompleted); err != nil {
		logger.Warn("discussion retired with stale status", zap.String("discussion_id", id))
	}
	h.manager.Remove(id)
	h.events.Close(id)
	h.updateGauge()
}

func (h *DiscussionHandler) updateGauge() {
	if h.gauge != nil {
		h.gauge.SetActiveDiscussions(h.manager.Len())
	}
}

func (h *DiscussionHandler) info(rec *persistence.DiscussionRecord, d *discussion.Discussion) api.DiscussionInfo {
	info := api.DiscussionInfo{
		ID:        rec.ID,
		Topic:     rec.Topic,
		Mode:      rec.Mode,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if d == nil {
		return info
	}
	snap := d.Snapshot()
	info.Live = true
	info.State = string(snap.State)
	info.Mode = string(snap.Mode)
	info.TurnCount = snap.TurnCount
	info.MaxTurns = snap.MaxTurns
	info.Agents = snap.Agents
	return info
}

// writeResult 写出结果；err 非空时（仅持久化失败）结果仍随错误返回
func (h *DiscussionHandler) writeResult(w http.ResponseWriter, data any, err error, logger *zap.Logger) {
	if err != nil {
		WriteErrorWithData(w, types.WrapError(err), data, logger)
		return
	}
	WriteSuccess(w, data)
}

func (h *DiscussionHandler) requestLogger(r *http.Request) *zap.Logger {
	logger := h.logger
	if id, ok := ctxkeys.RequestID(r.Context()); ok {
		logger = logger.With(zap.String("request_id", id))
	}
	if id, ok := ctxkeys.TraceID(r.Context()); ok {
		logger = logger.With(zap.String("trace_id", id))
	}
	return logger
}

func lookupError(id string, err error) *types.Error {
	if errors.Is(err, persistence.ErrNotFound) {
		return types.NewError(types.ErrNotFound, "discussion "+id+" not found")
	}
	return persistenceError("failed to load discussion", err)
}

func persistenceError(msg string, err error) *types.Error {
	return types.NewError(types.ErrPersistence, msg).WithCause(err)
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		WriteError(w, types.InvalidRequest("%s must be a non-negative integer", name), logger)
		return 0, false
	}
	return v, true
}

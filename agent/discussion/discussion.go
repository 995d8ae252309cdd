package discussion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/types"
)

const instrumentationName = "github.com/BaSui01/agentpanel/agent/discussion"

// State is the lifecycle position of a discussion.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateRunning       State = "running"
	StateCompleted     State = "completed"
)

// Config configures a discussion.
type Config struct {
	MaxTurns       int           `json:"max_turns"`
	ContextWindow  int           `json:"context_window"`
	MaxSentences   int           `json:"max_sentences"`
	BackendTimeout time.Duration `json:"backend_timeout"`
	DefaultMode    Mode          `json:"default_mode"`
	Adaptive       AdaptiveConfig
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxTurns:       12,
		ContextWindow:  5,
		MaxSentences:   3,
		BackendTimeout: 60 * time.Second,
		DefaultMode:    ModeAdaptive,
		Adaptive:       DefaultAdaptiveConfig(),
	}
}

// TurnResult is the outcome of one Advance call.
type TurnResult struct {
	// Done is the terminal sentinel: no speaker was selected because the turn
	// bound has been reached.
	Done      bool      `json:"done"`
	Turn      int       `json:"turn,omitempty"`
	Speaker   Agent     `json:"speaker"`
	Utterance Utterance `json:"utterance"`
	Strategy  string    `json:"strategy,omitempty"`
}

// Snapshot is a consistent read-only view of a discussion.
type Snapshot struct {
	ID         string      `json:"id"`
	Topic      string      `json:"topic"`
	State      State       `json:"state"`
	Mode       Mode        `json:"mode"`
	TurnCount  int         `json:"turn_count"`
	MaxTurns   int         `json:"max_turns"`
	Agents     []Agent     `json:"agents"`
	Transcript []Utterance `json:"transcript"`
}

// Option configures a Discussion.
type Option func(*Discussion)

// WithJudge sets the judge used by adaptive selection.
func WithJudge(j Judge) Option {
	return func(d *Discussion) { d.judge = j }
}

// WithSink sets the persistence sink.
func WithSink(s Sink) Option {
	return func(d *Discussion) {
		if s != nil {
			d.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Discussion) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(d *Discussion) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithSelector overrides the selector used for mode.
func WithSelector(mode Mode, s Selector) Option {
	return func(d *Discussion) { d.selectors[mode] = s }
}

// WithMode sets the initial selection mode, overriding Config.DefaultMode.
// Unknown modes are ignored.
func WithMode(mode Mode) Option {
	return func(d *Discussion) {
		if mode == ModeAdaptive || mode == ModeRoundRobin {
			d.mode = mode
		}
	}
}

// WithClock overrides the transcript clock.
func WithClock(now func() time.Time) Option {
	return func(d *Discussion) {
		if now != nil {
			d.now = now
		}
	}
}

// WithTracerProvider sets the provider spans are started from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Discussion) {
		if tp != nil {
			d.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// Discussion is the turn orchestrator for one discussion. All mutating calls
// are serialized; reads never wait for an in-flight backend call.
type Discussion struct {
	id       string
	config   Config
	backend  Backend
	judge    Judge
	sink     Sink
	observer Observer
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time

	selectors map[Mode]Selector
	rotation  Selector

	opMu sync.Mutex // serializes Init/Advance/InjectHuman/SetMode

	mu           sync.RWMutex // guards the fields below
	state        State
	topic        string
	registry     *Registry
	transcript   *Transcript
	turnCount    int
	mode         Mode
	sentinelSent bool
	completedAt  time.Time
}

// New creates an uninitialized discussion.
func New(id string, backend Backend, config Config, opts ...Option) *Discussion {
	d := &Discussion{
		id:        id,
		config:    config,
		backend:   backend,
		sink:      nopSink{},
		observer:  nopObserver{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
		selectors: make(map[Mode]Selector, 2),
		rotation:  RoundRobinSelector{},
		state:     StateUninitialized,
		mode:      config.DefaultMode,
	}
	if d.mode == "" {
		d.mode = ModeAdaptive
	}
	d.selectors[ModeRoundRobin] = d.rotation

	for _, opt := range opts {
		opt(d)
	}
	if _, ok := d.selectors[ModeAdaptive]; !ok {
		d.selectors[ModeAdaptive] = NewAdaptiveSelector(d.judge, config.Adaptive)
	}
	d.logger = d.logger.With(zap.String("component", "discussion"), zap.String("discussion_id", id))
	return d
}

// =============================================================================
// Lifecycle
// =============================================================================

// Init moves the discussion from Uninitialized to Running and records the
// topic framing as the transcript's only entry.
func (d *Discussion) Init(ctx context.Context, topic string, registry *Registry) (Utterance, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	topic = strings.TrimSpace(topic)

	d.mu.Lock()
	if d.state != StateUninitialized {
		state := d.state
		d.mu.Unlock()
		return Utterance{}, types.NotConfigured("discussion %s is already %s", d.id, state)
	}
	if topic == "" {
		d.mu.Unlock()
		return Utterance{}, types.NotConfigured("discussion topic is empty")
	}
	if registry.Len() == 0 {
		d.mu.Unlock()
		return Utterance{}, types.NotConfigured("discussion has no agents")
	}
	if d.backend == nil {
		d.mu.Unlock()
		return Utterance{}, types.NotConfigured("discussion has no generation backend")
	}

	d.topic = topic
	d.registry = registry
	d.transcript = NewTranscript()
	d.transcript.now = d.now
	d.turnCount = 0
	d.sentinelSent = false
	framing := d.transcript.Append(SystemID, framingText(topic, d.config.MaxSentences), KindSystem)
	d.transitionLocked(StateRunning)
	d.mu.Unlock()

	d.logger.Info("discussion initialized",
		zap.Int("agents", registry.Len()),
		zap.String("mode", string(d.Mode())),
		zap.Int("max_turns", d.config.MaxTurns))

	return framing, d.record(ctx, framing)
}

// Advance runs one turn. When the turn bound has been reached it returns the
// terminal sentinel once; later calls fail with NotConfigured. A backend
// failure leaves the discussion untouched so the same turn can be retried.
func (d *Discussion) Advance(ctx context.Context) (TurnResult, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	switch d.state {
	case StateUninitialized:
		d.mu.Unlock()
		return TurnResult{}, types.NotConfigured("discussion %s is not initialized", d.id)
	case StateCompleted:
		if d.sentinelSent {
			d.mu.Unlock()
			return TurnResult{}, types.NotConfigured("discussion %s is completed", d.id)
		}
		d.sentinelSent = true
		d.mu.Unlock()
		return TurnResult{Done: true}, nil
	}
	if d.turnCount >= d.config.MaxTurns {
		d.transitionLocked(StateCompleted)
		d.sentinelSent = true
		d.mu.Unlock()
		return TurnResult{Done: true}, nil
	}

	mode := d.mode
	turnIndex := d.turnCount
	historySize := d.config.Adaptive.FrequencyWindow
	if d.config.Adaptive.RecentWindow > historySize {
		historySize = d.config.Adaptive.RecentWindow
	}
	input := SelectionInput{
		Topic:     d.topic,
		Registry:  d.registry,
		TurnCount: turnIndex,
		History:   d.transcript.Window(historySize),
	}
	window := d.transcript.Window(d.config.ContextWindow)
	d.mu.Unlock()

	ctx, span := d.tracer.Start(ctx, "discussion.advance",
		trace.WithAttributes(
			attribute.String("discussion.id", d.id),
			attribute.String("discussion.mode", string(mode)),
			attribute.Int("discussion.turn", turnIndex),
		))
	defer span.End()

	sel := d.selectSpeaker(ctx, mode, input)
	span.SetAttributes(
		attribute.String("discussion.speaker", sel.Agent.Name),
		attribute.String("discussion.strategy", sel.Strategy),
	)

	req := buildGenerationRequest(d.id, input.Topic, sel.Agent, window, d.config.MaxSentences)
	text, err := d.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("turn failed",
			zap.Int("turn", turnIndex),
			zap.String("speaker", sel.Agent.Name),
			zap.Error(err))
		return TurnResult{}, err
	}

	d.mu.Lock()
	u := d.transcript.Append(sel.Agent.Name, text, KindAgent)
	d.turnCount++
	result := TurnResult{
		Turn:      d.turnCount,
		Speaker:   sel.Agent,
		Utterance: u,
		Strategy:  sel.Strategy,
	}
	if d.turnCount >= d.config.MaxTurns {
		d.transitionLocked(StateCompleted)
	}
	d.mu.Unlock()

	d.observer.ObserveTurn(string(mode), sel.Strategy)
	d.logger.Debug("turn completed",
		zap.Int("turn", result.Turn),
		zap.Int("seq", u.Seq),
		zap.String("speaker", sel.Agent.Name),
		zap.String("strategy", sel.Strategy))

	if err := d.record(ctx, u); err != nil {
		span.RecordError(err)
		return result, err
	}
	return result, nil
}

// InjectHuman appends a human utterance. It neither counts as a turn nor
// triggers one; it only raises the priority signal for the next Advance.
func (d *Discussion) InjectHuman(ctx context.Context, text string) (Utterance, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.state != StateRunning {
		state := d.state
		d.mu.Unlock()
		return Utterance{}, types.NotConfigured("discussion %s is %s", d.id, state)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		d.mu.Unlock()
		return Utterance{}, types.InvalidRequest("human message is empty")
	}
	u := d.transcript.Append(HumanID, text, KindHuman)
	d.mu.Unlock()

	d.observer.ObserveHumanInjection()
	d.logger.Debug("human message injected", zap.Int("seq", u.Seq))

	return u, d.record(ctx, u)
}

// SetMode switches the selection policy for subsequent turns.
func (d *Discussion) SetMode(mode Mode) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if _, ok := d.selectors[mode]; !ok {
		return types.InvalidRequest("unknown discussion mode %q", mode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning {
		return types.NotConfigured("discussion %s is %s", d.id, d.state)
	}
	if d.mode != mode {
		d.logger.Info("mode changed", zap.String("from", string(d.mode)), zap.String("to", string(mode)))
		d.mode = mode
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

// ID returns the discussion handle.
func (d *Discussion) ID() string { return d.id }

// State returns the lifecycle state.
func (d *Discussion) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Retirable reports whether an owner may drop a completed discussion: the
// terminal sentinel has been delivered, or the discussion has been completed
// for at least grace. A grace <= 0 retires any completed discussion.
func (d *Discussion) Retirable(grace time.Duration) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != StateCompleted {
		return false
	}
	return d.sentinelSent || grace <= 0 || d.now().Sub(d.completedAt) >= grace
}

// Mode returns the current selection mode.
func (d *Discussion) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// TurnCount returns the number of completed agent turns.
func (d *Discussion) TurnCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.turnCount
}

// Topic returns the discussion topic.
func (d *Discussion) Topic() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.topic
}

// Registry returns the agent registry, nil before Init.
func (d *Discussion) Registry() *Registry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry
}

// Transcript returns a copy of the transcript.
func (d *Discussion) Transcript() []Utterance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.transcript == nil {
		return nil
	}
	return d.transcript.All()
}

// Snapshot returns a consistent view of the discussion.
func (d *Discussion) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		ID:        d.id,
		Topic:     d.topic,
		State:     d.state,
		Mode:      d.mode,
		TurnCount: d.turnCount,
		MaxTurns:  d.config.MaxTurns,
	}
	if d.registry != nil {
		s.Agents = d.registry.Agents()
	}
	if d.transcript != nil {
		s.Transcript = d.transcript.All()
	}
	return s
}

// =============================================================================
// Internals
// =============================================================================

// selectSpeaker never fails: an adaptive failure degrades to rotation for
// this turn only.
func (d *Discussion) selectSpeaker(ctx context.Context, mode Mode, in SelectionInput) Selection {
	selector := d.selectors[mode]

	var (
		sel Selection
		err error
	)
	if mode == ModeAdaptive {
		judgeCtx, cancel := d.withTimeout(ctx)
		start := time.Now()
		sel, err = selector.Select(judgeCtx, in)
		cancel()
		d.observer.ObserveBackendCall(OperationJudge, time.Since(start), err)
	} else {
		sel, err = selector.Select(ctx, in)
	}

	if err == nil && in.Registry.Contains(sel.Agent.Name) {
		if !sel.Matched {
			d.logger.Debug("judge answer did not match any agent, using first agent",
				zap.String("answer", sel.Raw),
				zap.String("code", string(types.ErrSelectionAmbiguous)))
		}
		return sel
	}
	if err == nil {
		err = types.NewError(types.ErrSelectionAmbiguous, "selector returned an unregistered agent")
	}

	d.logger.Warn("speaker selection failed, falling back to round robin",
		zap.String("mode", string(mode)),
		zap.Error(err))
	d.observer.ObserveSelectionFallback(string(mode))

	fallback, _ := d.rotation.Select(ctx, in)
	fallback.Strategy = StrategyFallback
	return fallback
}

func (d *Discussion) generate(ctx context.Context, req *GenerationRequest) (string, error) {
	genCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := d.backend.Generate(genCtx, req)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = types.BackendFailure("backend returned an empty utterance", nil)
		}
	}
	d.observer.ObserveBackendCall(OperationGenerate, time.Since(start), err)
	if err == nil {
		return text, nil
	}

	if e, ok := types.AsError(err); ok && e.Code == types.ErrBackend {
		return "", e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", types.BackendFailure("generation timed out", err)
	}
	return "", types.BackendFailure("generation failed", err)
}

func (d *Discussion) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.BackendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.config.BackendTimeout)
}

// record hands u to the sink. A failure is reported but the in-memory append
// stands.
func (d *Discussion) record(ctx context.Context, u Utterance) error {
	if err := d.sink.Record(ctx, d.id, u); err != nil {
		d.logger.Error("failed to persist utterance", zap.Int("seq", u.Seq), zap.Error(err))
		return types.NewError(types.ErrPersistence, "failed to persist utterance").WithCause(err)
	}
	return nil
}

func (d *Discussion) transitionLocked(to State) {
	from := d.state
	d.state = to
	if to == StateCompleted {
		d.completedAt = d.now()
	}
	d.observer.ObserveStateTransition(string(from), string(to))
}

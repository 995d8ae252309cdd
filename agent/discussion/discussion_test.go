package discussion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentpanel/types"
)

// --- test doubles ---

type recordingBackend struct {
	mu       sync.Mutex
	requests []*GenerationRequest
	fail     func(call int) error
}

func (b *recordingBackend) Generate(_ context.Context, req *GenerationRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.fail != nil {
		if err := b.fail(len(b.requests)); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s speaks", req.Speaker.Name), nil
}

func (b *recordingBackend) speakers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.requests))
	for i, r := range b.requests {
		out[i] = r.Speaker.Name
	}
	return out
}

func (b *recordingBackend) last() *GenerationRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

type memorySink struct {
	mu   sync.Mutex
	seqs []int
	err  error
}

func (s *memorySink) Record(_ context.Context, _ string, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, u.Seq)
	return s.err
}

type countingObserver struct {
	mu          sync.Mutex
	turns       int
	fallbacks   int
	injections  int
	transitions []string
	calls       map[string]int
}

func (o *countingObserver) ObserveTurn(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turns++
}

func (o *countingObserver) ObserveBackendCall(op string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]int)
	}
	o.calls[op]++
}

func (o *countingObserver) ObserveSelectionFallback(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks++
}

func (o *countingObserver) ObserveHumanInjection() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.injections++
}

func (o *countingObserver) ObserveStateTransition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+"->"+to)
}

func mustRegistry(t require.TestingT, names ...string) *Registry {
	agents := make([]Agent, len(names))
	for i, n := range names {
		agents[i] = Agent{Name: n, Persona: "You are " + n + "."}
	}
	r, err := NewRegistry(agents...)
	require.NoError(t, err)
	return r
}

func testConfig(mode Mode, maxTurns int) Config {
	cfg := DefaultConfig()
	cfg.DefaultMode = mode
	cfg.MaxTurns = maxTurns
	cfg.BackendTimeout = time.Second
	return cfg
}

func fixedJudge(name string) Judge {
	return JudgeFunc(func(context.Context, *JudgeRequest) (string, error) { return name, nil })
}

// --- lifecycle ---

func TestDiscussion_RoundRobinScenario(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	obs := &countingObserver{}
	d := New("d1", backend, testConfig(ModeRoundRobin, 4), WithLogger(zaptest.NewLogger(t)), WithObserver(obs))

	_, err := d.Init(ctx, "lakes", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	var speakers []string
	for i := 0; i < 4; i++ {
		res, err := d.Advance(ctx)
		require.NoError(t, err)
		require.False(t, res.Done)
		assert.Equal(t, i+1, res.Turn)
		assert.Equal(t, res.Speaker.Name, res.Utterance.SpeakerID)
		speakers = append(speakers, res.Speaker.Name)
	}
	assert.Equal(t, []string{"A", "B", "C", "A"}, speakers)
	assert.Equal(t, StateCompleted, d.State())

	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 4, d.TurnCount())

	_, err = d.Advance(ctx)
	assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
	assert.Equal(t, 4, d.TurnCount())
	assert.Len(t, backend.requests, 4)

	assert.Equal(t, 4, obs.turns)
	assert.Equal(t, []string{"uninitialized->running", "running->completed"}, obs.transitions)
}

func TestDiscussion_InitRecordsFraming(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	d := New("d1", &recordingBackend{}, DefaultConfig(), WithSink(sink))

	framing, err := d.Init(ctx, "  Is AI creative?  ", mustRegistry(t, "A"))
	require.NoError(t, err)

	assert.Equal(t, 0, framing.Seq)
	assert.Equal(t, KindSystem, framing.Kind)
	assert.Equal(t, SystemID, framing.SpeakerID)
	assert.Contains(t, framing.Text, "Is AI creative?")
	assert.Equal(t, "Is AI creative?", d.Topic())
	assert.Equal(t, StateRunning, d.State())
	assert.Equal(t, 0, d.TurnCount())
	assert.Len(t, d.Transcript(), 1)
	assert.Equal(t, []int{0}, sink.seqs)
}

func TestDiscussion_ContractViolations(t *testing.T) {
	ctx := context.Background()

	t.Run("before init", func(t *testing.T) {
		d := New("d1", &recordingBackend{}, DefaultConfig())
		_, err := d.Advance(ctx)
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
		_, err = d.InjectHuman(ctx, "hello")
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
		assert.True(t, types.IsErrorCode(d.SetMode(ModeRoundRobin), types.ErrNotConfigured))
	})

	t.Run("empty topic", func(t *testing.T) {
		d := New("d1", &recordingBackend{}, DefaultConfig())
		_, err := d.Init(ctx, "   ", mustRegistry(t, "A"))
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
		assert.Equal(t, StateUninitialized, d.State())
	})

	t.Run("empty registry", func(t *testing.T) {
		d := New("d1", &recordingBackend{}, DefaultConfig())
		_, err := d.Init(ctx, "topic", nil)
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
	})

	t.Run("missing backend", func(t *testing.T) {
		d := New("d1", nil, DefaultConfig())
		_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
	})

	t.Run("double init", func(t *testing.T) {
		d := New("d1", &recordingBackend{}, DefaultConfig())
		_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
		require.NoError(t, err)
		_, err = d.Init(ctx, "other", mustRegistry(t, "B"))
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
		assert.Equal(t, "topic", d.Topic())
	})

	t.Run("after completion", func(t *testing.T) {
		d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, 1))
		_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
		require.NoError(t, err)
		_, err = d.Advance(ctx)
		require.NoError(t, err)

		_, err = d.InjectHuman(ctx, "late")
		assert.True(t, types.IsErrorCode(err, types.ErrNotConfigured))
		assert.True(t, types.IsErrorCode(d.SetMode(ModeAdaptive), types.ErrNotConfigured))
	})
}

// --- backend failures ---

func TestDiscussion_BackendErrorDoesNotConsumeTurn(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{fail: func(call int) error {
		if call == 2 {
			return errors.New("connection reset")
		}
		return nil
	}}
	d := New("d1", backend, testConfig(ModeRoundRobin, 12))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	_, err = d.Advance(ctx)
	require.NoError(t, err)

	before := d.Transcript()
	_, err = d.Advance(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrBackend))
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, 1, d.TurnCount())
	assert.Equal(t, before, d.Transcript())
	assert.Equal(t, StateRunning, d.State())

	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Speaker.Name)
	assert.Equal(t, []string{"A", "B", "B"}, backend.speakers(), "retry re-attempts the same speaker")
	assert.Equal(t, 2, res.Turn)
}

func TestDiscussion_AdaptiveRetrySelectsSameSpeaker(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{fail: func(call int) error {
		if call == 1 {
			return errors.New("overloaded")
		}
		return nil
	}}
	d := New("d1", backend, testConfig(ModeAdaptive, 12), WithJudge(fixedJudge("C")))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	_, err = d.Advance(ctx)
	require.Error(t, err)
	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "C"}, backend.speakers())
	assert.Equal(t, "C", res.Speaker.Name)
}

func TestDiscussion_BlankGenerationIsBackendError(t *testing.T) {
	ctx := context.Background()
	backend := BackendFunc(func(context.Context, *GenerationRequest) (string, error) { return "  \n\t", nil })
	d := New("d1", backend, testConfig(ModeRoundRobin, 12))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
	require.NoError(t, err)

	_, err = d.Advance(ctx)
	assert.True(t, types.IsErrorCode(err, types.ErrBackend))
	assert.Equal(t, 0, d.TurnCount())
	assert.Len(t, d.Transcript(), 1)
}

func TestDiscussion_BackendTimeout(t *testing.T) {
	ctx := context.Background()
	backend := BackendFunc(func(ctx context.Context, _ *GenerationRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testConfig(ModeRoundRobin, 12)
	cfg.BackendTimeout = 20 * time.Millisecond
	d := New("d1", backend, cfg)
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
	require.NoError(t, err)

	_, err = d.Advance(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrBackend))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, d.TurnCount())
}

// --- human injection and adaptive selection ---

func TestDiscussion_InjectHumanThenAdaptive(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	var judged *JudgeRequest
	judge := JudgeFunc(func(_ context.Context, req *JudgeRequest) (string, error) {
		judged = req
		return "B", nil
	})
	d := New("d1", backend, testConfig(ModeAdaptive, 12), WithJudge(judge))
	_, err := d.Init(ctx, "pricing", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	human, err := d.InjectHuman(ctx, "what about cost?")
	require.NoError(t, err)
	assert.Equal(t, KindHuman, human.Kind)
	assert.Equal(t, HumanID, human.SpeakerID)
	assert.Equal(t, 0, d.TurnCount(), "human injections are not turns")
	assert.Empty(t, backend.requests, "injection never triggers a turn")

	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Speaker.Name)
	assert.Equal(t, StrategyAdaptive, res.Strategy)
	assert.NotEqual(t, HumanID, res.Speaker.Name)

	require.NotNil(t, judged)
	assert.True(t, judged.HumanPriority)

	req := backend.last()
	require.NotEmpty(t, req.Window)
	assert.Equal(t, "what about cost?", req.Window[len(req.Window)-1].Text)
	assert.Equal(t, HumanID, req.Window[len(req.Window)-1].SpeakerID)
	assert.Equal(t, "pricing", req.Topic)
	assert.Contains(t, req.Instruction, "B,")
	assert.True(t, req.Style.FirstPerson)
}

func TestDiscussion_InjectHumanRejectsBlank(t *testing.T) {
	ctx := context.Background()
	d := New("d1", &recordingBackend{}, DefaultConfig())
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
	require.NoError(t, err)

	_, err = d.InjectHuman(ctx, "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Len(t, d.Transcript(), 1)
}

func TestDiscussion_JudgeFailureFallsBackForOneTurn(t *testing.T) {
	ctx := context.Background()
	calls := 0
	judge := JudgeFunc(func(context.Context, *JudgeRequest) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("judge unavailable")
		}
		return "C", nil
	})
	obs := &countingObserver{}
	d := New("d1", &recordingBackend{}, testConfig(ModeAdaptive, 12), WithJudge(judge), WithObserver(obs))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	first, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, first.Strategy)
	assert.Equal(t, "A", first.Speaker.Name)
	assert.Equal(t, ModeAdaptive, d.Mode())

	second, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StrategyAdaptive, second.Strategy)
	assert.Equal(t, "C", second.Speaker.Name)

	assert.Equal(t, 1, obs.fallbacks)
	assert.Equal(t, 2, obs.calls[OperationJudge])
	assert.Equal(t, 2, obs.calls[OperationGenerate])
}

func TestDiscussion_UnmatchedJudgeAnswerUsesFirstAgent(t *testing.T) {
	ctx := context.Background()
	d := New("d1", &recordingBackend{}, testConfig(ModeAdaptive, 12), WithJudge(fixedJudge("the moderator")))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B"))
	require.NoError(t, err)

	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Speaker.Name)
	assert.Equal(t, StrategyAdaptive, res.Strategy)
}

func TestDiscussion_SetMode(t *testing.T) {
	ctx := context.Background()
	judgeCalls := 0
	judge := JudgeFunc(func(context.Context, *JudgeRequest) (string, error) {
		judgeCalls++
		return "B", nil
	})
	d := New("d1", &recordingBackend{}, testConfig(ModeAdaptive, 12), WithJudge(judge))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	_, err = d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, judgeCalls)

	assert.True(t, types.IsErrorCode(d.SetMode("loud"), types.ErrInvalidRequest))
	require.NoError(t, d.SetMode(ModeRoundRobin))

	res, err := d.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, judgeCalls, "round robin never consults the judge")
	assert.Equal(t, "B", res.Speaker.Name, "rotation resumes at turnCount mod N")
	assert.Equal(t, StrategyRoundRobin, res.Strategy)
}

func TestDiscussion_SingleAgentRegistry(t *testing.T) {
	ctx := context.Background()
	d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, 3))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "Solo"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := d.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Solo", res.Speaker.Name)
	}
}

// --- persistence ---

func TestDiscussion_SinkFailureKeepsAppend(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, 12), WithSink(sink))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
	require.NoError(t, err)

	sink.err = errors.New("disk full")
	res, err := d.Advance(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrPersistence))
	assert.Equal(t, "A", res.Speaker.Name)
	assert.Equal(t, 1, res.Utterance.Seq)
	assert.Equal(t, 1, d.TurnCount())
	assert.Len(t, d.Transcript(), 2)
	assert.Equal(t, []int{0, 1}, sink.seqs)
}

func TestMultiSink_FansOutAndKeepsFirstError(t *testing.T) {
	ctx := context.Background()
	failing := &memorySink{err: errors.New("disk full")}
	second := &memorySink{}
	d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, 12),
		WithSink(MultiSink(failing, nil, second)))

	_, err := d.Init(ctx, "topic", mustRegistry(t, "A"))
	assert.True(t, types.IsErrorCode(err, types.ErrPersistence))
	assert.Equal(t, []int{0}, failing.seqs)
	assert.Equal(t, []int{0}, second.seqs, "later sinks still see the utterance")
}

func TestDiscussion_WithModeOverridesDefault(t *testing.T) {
	d := New("d1", &recordingBackend{}, testConfig(ModeAdaptive, 12), WithMode(ModeRoundRobin))
	assert.Equal(t, ModeRoundRobin, d.Mode())

	d = New("d2", &recordingBackend{}, testConfig(ModeRoundRobin, 12), WithMode("loud"))
	assert.Equal(t, ModeRoundRobin, d.Mode())
}

// --- properties ---

// Sequence numbers stay gap-free and the sink sees them in order for any mix
// of turns, failing turns and human injections.
func TestProperty_TranscriptGapFree(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		failNext := false
		backend := BackendFunc(func(_ context.Context, req *GenerationRequest) (string, error) {
			if failNext {
				return "", errors.New("flaky")
			}
			return req.Speaker.Name + " says hi", nil
		})
		sink := &memorySink{}
		maxTurns := rapid.IntRange(1, 6).Draw(rt, "maxTurns")
		mode := rapid.SampledFrom([]Mode{ModeRoundRobin, ModeAdaptive}).Draw(rt, "mode")

		d := New("prop", backend, testConfig(mode, maxTurns), WithSink(sink), WithJudge(fixedJudge("B")))
		_, err := d.Init(ctx, "topic", mustRegistry(rt, "A", "B", "C"))
		require.NoError(rt, err)

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 0, 30).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				failNext = false
				_, _ = d.Advance(ctx)
			case 1:
				failNext = true
				_, _ = d.Advance(ctx)
			case 2:
				_, _ = d.InjectHuman(ctx, "hello")
			}
		}

		transcript := d.Transcript()
		agentTurns := 0
		for i, u := range transcript {
			require.Equal(rt, i, u.Seq)
			if u.Kind == KindAgent {
				agentTurns++
			}
		}
		require.Equal(rt, agentTurns, d.TurnCount())
		require.LessOrEqual(rt, d.TurnCount(), maxTurns)

		require.Len(rt, sink.seqs, len(transcript))
		for i, seq := range sink.seqs {
			require.Equal(rt, i, seq)
		}
	})
}

func TestDiscussion_ConcurrentCallersStaySerialized(t *testing.T) {
	ctx := context.Background()
	const maxTurns = 20
	d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, maxTurns))
	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B", "C"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if i%3 == 0 {
					_, _ = d.InjectHuman(ctx, fmt.Sprintf("worker %d", w))
				}
				_, _ = d.Advance(ctx)
				_ = d.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, maxTurns, d.TurnCount())
	assert.Equal(t, StateCompleted, d.State())
	for i, u := range d.Transcript() {
		require.Equal(t, i, u.Seq)
	}
}

func TestDiscussion_Snapshot(t *testing.T) {
	ctx := context.Background()
	d := New("d1", &recordingBackend{}, testConfig(ModeRoundRobin, 5))

	s := d.Snapshot()
	assert.Equal(t, StateUninitialized, s.State)
	assert.Nil(t, s.Agents)

	_, err := d.Init(ctx, "topic", mustRegistry(t, "A", "B"))
	require.NoError(t, err)
	_, err = d.Advance(ctx)
	require.NoError(t, err)

	s = d.Snapshot()
	assert.Equal(t, "d1", s.ID)
	assert.Equal(t, StateRunning, s.State)
	assert.Equal(t, ModeRoundRobin, s.Mode)
	assert.Equal(t, 1, s.TurnCount)
	assert.Equal(t, 5, s.MaxTurns)
	assert.Len(t, s.Agents, 2)
	assert.Len(t, s.Transcript, 2)
}

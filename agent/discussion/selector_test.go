package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentpanel/types"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"round_robin", ModeRoundRobin, true},
		{"Round-Robin", ModeRoundRobin, true},
		{"adaptive", ModeAdaptive, true},
		{" auto ", ModeAdaptive, true},
		{"random", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if !tt.ok {
			assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest), "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

// Round-robin picks registry[t mod N] regardless of transcript content.
func TestProperty_RoundRobin_RotationParity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("speaker at turn t is registry[t mod N]", prop.ForAll(
		func(n int, turn int, noise string) bool {
			agents := make([]Agent, n)
			for i := range agents {
				agents[i] = Agent{Name: fmt.Sprintf("agent-%d", i)}
			}
			r, err := NewRegistry(agents...)
			if err != nil {
				return false
			}

			sel, err := RoundRobinSelector{}.Select(context.Background(), SelectionInput{
				Registry:  r,
				TurnCount: turn,
				History:   []Utterance{{SpeakerID: HumanID, Text: noise, Kind: KindHuman}},
			})
			if err != nil {
				return false
			}
			return sel.Agent.Name == agents[turn%n].Name && sel.Strategy == StrategyRoundRobin
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestAdaptiveSelector_BuildRequest(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(
		Agent{Name: "A", Persona: strings.Repeat("p", 150)},
		Agent{Name: "B", Persona: "short"},
	)
	require.NoError(t, err)

	var history []Utterance
	for i := 0; i < 12; i++ {
		speaker := "A"
		if i%3 == 0 {
			speaker = "B"
		}
		history = append(history, Utterance{Seq: i + 1, SpeakerID: speaker, Text: fmt.Sprintf("msg-%d", i), Kind: KindAgent})
	}
	history = append(history, Utterance{Seq: 13, SpeakerID: HumanID, Text: strings.Repeat("x", 250) + " @b", Kind: KindHuman})

	s := NewAdaptiveSelector(nil, DefaultAdaptiveConfig())
	req := s.BuildRequest(SelectionInput{Topic: "cost", Registry: r, History: history})

	require.Len(t, req.Candidates, 2)
	assert.Equal(t, strings.Repeat("p", 100)+"...", req.Candidates[0].Summary)
	assert.Equal(t, "short", req.Candidates[1].Summary)

	require.Len(t, req.Recent, 8)
	last := req.Recent[7]
	assert.Equal(t, strings.Repeat("x", 200)+"...", last.Text)
	assert.Equal(t, 13, last.Seq)

	// Frequency covers the last 10: msg-3..msg-11 plus the human entry.
	// B spoke at i = 3, 6, 9; A at the other six.
	assert.Equal(t, []SpeakerCount{{Name: "A", Count: 6}, {Name: "B", Count: 3}}, req.Frequency)

	assert.True(t, req.HumanPriority)
	assert.Equal(t, []string{"B"}, req.Mentions, "mentions are read before truncation")
	assert.Equal(t, "cost", req.Topic)
}

func TestAdaptiveSelector_Select(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(Agent{Name: "A"}, Agent{Name: "B"})
	require.NoError(t, err)
	in := SelectionInput{Registry: r}
	ctx := context.Background()

	t.Run("resolves free text", func(t *testing.T) {
		s := NewAdaptiveSelector(JudgeFunc(func(context.Context, *JudgeRequest) (string, error) {
			return "  b\n", nil
		}), DefaultAdaptiveConfig())

		sel, err := s.Select(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "B", sel.Agent.Name)
		assert.True(t, sel.Matched)
		assert.Equal(t, StrategyAdaptive, sel.Strategy)
	})

	t.Run("unmatched answer falls back to first agent", func(t *testing.T) {
		s := NewAdaptiveSelector(JudgeFunc(func(context.Context, *JudgeRequest) (string, error) {
			return "no preference", nil
		}), DefaultAdaptiveConfig())

		sel, err := s.Select(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "A", sel.Agent.Name)
		assert.False(t, sel.Matched)
	})

	t.Run("judge error is a backend error", func(t *testing.T) {
		s := NewAdaptiveSelector(JudgeFunc(func(context.Context, *JudgeRequest) (string, error) {
			return "", errors.New("judge down")
		}), DefaultAdaptiveConfig())

		_, err := s.Select(ctx, in)
		assert.True(t, types.IsErrorCode(err, types.ErrBackend))
		assert.True(t, types.IsRetryable(err))
	})

	t.Run("missing judge", func(t *testing.T) {
		_, err := NewAdaptiveSelector(nil, DefaultAdaptiveConfig()).Select(ctx, in)
		assert.True(t, types.IsErrorCode(err, types.ErrBackend))
	})
}

package discussion

import (
	"context"
	"strings"

	"github.com/BaSui01/agentpanel/types"
)

// Mode defines how the next speaker is chosen.
type Mode string

const (
	ModeRoundRobin Mode = "round_robin" // Agents take turns
	ModeAdaptive   Mode = "adaptive"    // A judge chooses the next speaker
)

// ParseMode parses a mode name. "auto" is accepted as an alias of adaptive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "round_robin", "round-robin", "roundrobin":
		return ModeRoundRobin, nil
	case "adaptive", "auto":
		return ModeAdaptive, nil
	default:
		return "", types.InvalidRequest("unknown discussion mode %q", s)
	}
}

// Selection strategies reported in turn results.
const (
	StrategyRoundRobin = "round_robin"
	StrategyAdaptive   = "adaptive"
	// StrategyFallback marks an adaptive turn that fell back to rotation
	// because the judge failed.
	StrategyFallback = "fallback_round_robin"
)

// SelectionInput is what a selector may look at.
type SelectionInput struct {
	Topic     string
	Registry  *Registry
	TurnCount int
	// History is the non-system transcript suffix, oldest first.
	History []Utterance
}

// Selection is a selector's decision.
type Selection struct {
	Agent    Agent
	Strategy string
	// Matched is false when an adaptive answer could not be resolved and the
	// registry's first agent was used.
	Matched bool
	Raw     string
}

// Selector chooses the next speaker. A returned agent is always a member of
// the input registry.
type Selector interface {
	Select(ctx context.Context, in SelectionInput) (Selection, error)
}

// RoundRobinSelector picks registry[turnCount mod N].
type RoundRobinSelector struct{}

// Select implements Selector.
func (RoundRobinSelector) Select(_ context.Context, in SelectionInput) (Selection, error) {
	n := in.Registry.Len()
	if n == 0 {
		return Selection{}, types.NotConfigured("no agents available")
	}
	return Selection{
		Agent:    in.Registry.At(in.TurnCount % n),
		Strategy: StrategyRoundRobin,
		Matched:  true,
	}, nil
}

// AdaptiveConfig bounds the judge's view of the conversation.
type AdaptiveConfig struct {
	FrequencyWindow int // non-system utterances counted for frequency stats
	RecentWindow    int // non-system utterances quoted verbatim
	EntryTruncate   int // max runes per quoted utterance
	PersonaSummary  int // max runes of persona shown per candidate
}

// DefaultAdaptiveConfig returns default configuration.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		FrequencyWindow: 10,
		RecentWindow:    8,
		EntryTruncate:   200,
		PersonaSummary:  100,
	}
}

// AdaptiveSelector delegates the choice to a Judge. A judge error is
// returned as-is; falling back is the caller's decision.
type AdaptiveSelector struct {
	judge  Judge
	config AdaptiveConfig
}

// NewAdaptiveSelector creates a judge-backed selector.
func NewAdaptiveSelector(judge Judge, config AdaptiveConfig) *AdaptiveSelector {
	return &AdaptiveSelector{judge: judge, config: config}
}

// Select implements Selector.
func (s *AdaptiveSelector) Select(ctx context.Context, in SelectionInput) (Selection, error) {
	if in.Registry.Len() == 0 {
		return Selection{}, types.NotConfigured("no agents available")
	}
	if s.judge == nil {
		return Selection{}, types.BackendFailure("no selection judge configured", nil)
	}

	req := s.BuildRequest(in)
	raw, err := s.judge.Choose(ctx, req)
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Code == types.ErrBackend {
			return Selection{}, e
		}
		return Selection{}, types.BackendFailure("selection judge failed", err)
	}

	agent, matched := ResolveSpeaker(in.Registry, raw)
	return Selection{
		Agent:    agent,
		Strategy: StrategyAdaptive,
		Matched:  matched,
		Raw:      raw,
	}, nil
}

// BuildRequest assembles the judge's inputs from a selection input.
func (s *AdaptiveSelector) BuildRequest(in SelectionInput) *JudgeRequest {
	reg := in.Registry

	candidates := make([]Candidate, reg.Len())
	for i, a := range reg.agents {
		candidates[i] = Candidate{Name: a.Name, Summary: truncateRunes(a.Persona, s.config.PersonaSummary)}
	}

	freqWindow := tail(in.History, s.config.FrequencyWindow)
	recent := tail(in.History, s.config.RecentWindow)

	quoted := make([]Utterance, len(recent))
	var mentions []string
	seen := make(map[string]bool)
	for i, u := range recent {
		for _, m := range ExtractMentions(reg, u.Text) {
			if !seen[m] {
				seen[m] = true
				mentions = append(mentions, m)
			}
		}
		u.Text = truncateRunes(u.Text, s.config.EntryTruncate)
		quoted[i] = u
	}

	humanPriority := false
	if n := len(in.History); n > 0 {
		humanPriority = in.History[n-1].Kind == KindHuman
	}

	return &JudgeRequest{
		Topic:         in.Topic,
		Candidates:    candidates,
		Frequency:     Frequency(reg, freqWindow),
		Recent:        quoted,
		Mentions:      mentions,
		HumanPriority: humanPriority,
	}
}

func tail(us []Utterance, k int) []Utterance {
	if k <= 0 {
		return nil
	}
	if len(us) <= k {
		return us
	}
	return us[len(us)-k:]
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/agentpanel/llm"
	"github.com/BaSui01/agentpanel/types"
)

// SamplingSettings are the model parameters for one kind of call.
type SamplingSettings struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultSpeechSettings returns default speech sampling.
func DefaultSpeechSettings() SamplingSettings {
	return SamplingSettings{Temperature: 0.8, MaxTokens: 200}
}

// DefaultJudgeSettings returns default judge sampling. Answers are a single
// name, so the token budget is tiny.
func DefaultJudgeSettings() SamplingSettings {
	return SamplingSettings{Temperature: 0.9, MaxTokens: 20}
}

// LLMBackend generates utterances through an llm.Provider.
type LLMBackend struct {
	provider llm.Provider
	settings SamplingSettings
}

// NewLLMBackend creates a provider-backed generation backend.
func NewLLMBackend(provider llm.Provider, settings SamplingSettings) *LLMBackend {
	return &LLMBackend{provider: provider, settings: settings}
}

// Generate implements Backend.
func (b *LLMBackend) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	resp, err := b.provider.Completion(ctx, &llm.ChatRequest{
		TraceID:     req.DiscussionID,
		Model:       b.settings.Model,
		Temperature: b.settings.Temperature,
		MaxTokens:   b.settings.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: req.Speaker.Persona},
			{Role: llm.RoleUser, Content: BuildSpeechPrompt(req)},
		},
		Metadata: map[string]string{"speaker": req.Speaker.Name},
	})
	if err != nil {
		return "", providerFailure(b.provider, "generation request failed", err)
	}
	text, err := llm.FirstContent(resp)
	if err != nil {
		return "", types.BackendFailure("generation returned no content", err).WithProvider(b.provider.Name())
	}
	return text, nil
}

// BuildSpeechPrompt renders a generation request as the user turn of a chat.
func BuildSpeechPrompt(req *GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discussion topic: %s\n\n", req.Topic)
	b.WriteString("Conversation history:\n")
	for _, u := range req.Window {
		fmt.Fprintf(&b, "%s: %s\n", u.SpeakerID, u.Text)
	}
	b.WriteString("\n")
	b.WriteString(req.Instruction)
	return b.String()
}

// LLMJudge asks an llm.Provider who should speak next.
type LLMJudge struct {
	provider llm.Provider
	settings SamplingSettings
}

// NewLLMJudge creates a provider-backed selection judge.
func NewLLMJudge(provider llm.Provider, settings SamplingSettings) *LLMJudge {
	return &LLMJudge{provider: provider, settings: settings}
}

// Choose implements Judge.
func (j *LLMJudge) Choose(ctx context.Context, req *JudgeRequest) (string, error) {
	resp, err := j.provider.Completion(ctx, &llm.ChatRequest{
		Model:       j.settings.Model,
		Temperature: j.settings.Temperature,
		MaxTokens:   j.settings.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildSelectionPrompt(req)},
		},
	})
	if err != nil {
		return "", providerFailure(j.provider, "selection request failed", err)
	}
	text, err := llm.FirstContent(resp)
	if err != nil {
		return "", types.BackendFailure("selection returned no content", err).WithProvider(j.provider.Name())
	}
	return text, nil
}

// BuildSelectionPrompt renders the judge's inputs.
func BuildSelectionPrompt(req *JudgeRequest) string {
	var b strings.Builder
	b.WriteString("Based on the following discussion, select who should speak next to create the most natural, engaging conversation.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n\n", req.Topic)

	b.WriteString("Available speakers:\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Summary)
	}

	b.WriteString("\nRecent conversation (latest messages):\n")
	for _, u := range req.Recent {
		fmt.Fprintf(&b, "%s: %s\n", u.SpeakerID, u.Text)
	}

	stats := make([]string, len(req.Frequency))
	for i, f := range req.Frequency {
		stats[i] = fmt.Sprintf("%s: %d", f.Name, f.Count)
	}
	fmt.Fprintf(&b, "\nRecent speaking frequency: %s\n", strings.Join(stats, ", "))

	if len(req.Mentions) > 0 {
		fmt.Fprintf(&b, "Directly mentioned: %s\n", strings.Join(req.Mentions, ", "))
	}
	if req.HumanPriority {
		fmt.Fprintf(&b, "\n**CRITICAL**: The user (%q) just spoke. You MUST select someone to respond to the user's message. "+
			"The selected speaker should acknowledge and reply to what the user said.\n", HumanID)
	}

	b.WriteString("\nRules for selection:\n")
	b.WriteString("1. Choose whoever would most naturally respond to what was just said\n")
	b.WriteString("2. If someone was directly mentioned (@Name), they should usually respond\n")
	fmt.Fprintf(&b, "3. If the user (%q) just spoke, select someone who will respond to them\n", HumanID)
	b.WriteString("4. Consider each speaker's expertise and relevance to the current topic\n")
	b.WriteString("5. It's fine for someone to speak 2-3 times in a row if the conversation demands it\n")
	b.WriteString("6. Prioritize natural conversation flow over equal distribution\n")
	b.WriteString("\nRespond with ONLY the speaker's name, nothing else.\n\nSelected speaker:")
	return b.String()
}

func providerFailure(p llm.Provider, msg string, err error) *types.Error {
	e := types.BackendFailure(msg, err).WithProvider(p.Name())
	var le *llm.Error
	if errors.As(err, &le) {
		e.WithHTTPStatus(le.HTTPStatus).WithRetryable(le.Retryable)
	}
	return e
}

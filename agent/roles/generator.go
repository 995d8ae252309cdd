package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/llm"
	"github.com/BaSui01/agentpanel/types"
)

// Role is one generated discussion perspective.
type Role struct {
	Name        string `json:"name"`
	Stance      string `json:"stance"`
	Personality string `json:"personality"`
}

// GeneratorConfig configures role generation.
type GeneratorConfig struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultGeneratorConfig returns default configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Temperature: 0.8, MaxTokens: 800}
}

// Generator asks a model for a set of contrasting roles for a topic.
type Generator struct {
	provider llm.Provider
	config   GeneratorConfig
	logger   *zap.Logger
}

// NewGenerator creates a role generator.
func NewGenerator(provider llm.Provider, config GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("component", "role_generator")),
	}
}

// Generate returns n agents for topic.
func (g *Generator) Generate(ctx context.Context, topic string, n int) ([]discussion.Agent, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, types.InvalidRequest("topic is empty")
	}
	if n <= 0 {
		return nil, types.InvalidRequest("role count must be positive, got %d", n)
	}

	resp, err := g.provider.Completion(ctx, &llm.ChatRequest{
		Model:       g.config.Model,
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildRolePrompt(topic, n)}},
	})
	if err != nil {
		return nil, types.BackendFailure("role generation request failed", err).WithProvider(g.provider.Name())
	}
	content, err := llm.FirstContent(resp)
	if err != nil {
		return nil, types.BackendFailure("role generation returned no content", err).WithProvider(g.provider.Name())
	}

	roles, err := ParseRoles(content)
	if err != nil {
		return nil, types.BackendFailure("role generation returned malformed roles", err)
	}
	if len(roles) > n {
		roles = roles[:n]
	}

	agents, err := AgentsFromRoles(topic, roles)
	if err != nil {
		return nil, err
	}
	g.logger.Info("roles generated", zap.Int("count", len(agents)), zap.Strings("names", namesOf(agents)))
	return agents, nil
}

// GenerateOrFallback never fails: any generation problem yields the fallback
// roster.
func (g *Generator) GenerateOrFallback(ctx context.Context, topic string, n int) []discussion.Agent {
	agents, err := g.Generate(ctx, topic, n)
	if err != nil {
		g.logger.Warn("role generation failed, using fallback roster", zap.Error(err))
		return FallbackRoster()
	}
	return agents
}

// AgentsFromRoles turns parsed roles into registry-ready agents. The result
// is checked with discussion.NewRegistry, so empty, reserved and duplicate
// names are rejected here as a generation failure.
func AgentsFromRoles(topic string, roles []Role) ([]discussion.Agent, error) {
	if len(roles) == 0 {
		return nil, types.BackendFailure("no roles generated", nil)
	}

	agents := make([]discussion.Agent, 0, len(roles))
	for _, r := range roles {
		display := strings.TrimSpace(r.Name)
		name := CleanName(display)
		if name == "" {
			return nil, types.BackendFailure(fmt.Sprintf("role %q has no usable name", r.Name), nil)
		}

		agents = append(agents, discussion.Agent{
			Name:        name,
			DisplayName: display,
			Stance:      strings.TrimSpace(r.Stance),
			Personality: strings.TrimSpace(r.Personality),
			Persona:     Persona(topic, display, r.Stance, r.Personality),
		})
	}
	if _, err := discussion.NewRegistry(agents...); err != nil {
		return nil, types.BackendFailure("generated roles cannot form a registry", err)
	}
	return agents, nil
}

// ParseRoles extracts roles from a model answer. It accepts {"roles":[...]},
// a bare array, and either form inside a fenced code block.
func ParseRoles(content string) ([]Role, error) {
	content = strings.TrimSpace(content)
	if roles, ok := tryParseRoles(content); ok {
		return roles, nil
	}

	if idx := strings.Index(content, "```"); idx != -1 {
		start := idx + len("```")
		// Skip the language tag if present on the same line.
		if nl := strings.Index(content[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			if roles, ok := tryParseRoles(strings.TrimSpace(content[start : start+end])); ok {
				return roles, nil
			}
		}
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start != -1 && end > start {
		if roles, ok := tryParseRoles(content[start : end+1]); ok {
			return roles, nil
		}
	}
	return nil, fmt.Errorf("no roles found in model output")
}

func tryParseRoles(raw string) ([]Role, bool) {
	var wrapped struct {
		Roles []Role `json:"roles"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.Roles) > 0 {
		return wrapped.Roles, true
	}
	var bare []Role
	if err := json.Unmarshal([]byte(raw), &bare); err == nil && len(bare) > 0 {
		return bare, true
	}
	return nil, false
}

// CleanName turns a display name into a speaker identity: spaces become
// underscores and the characters <>|/\ are dropped.
func CleanName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case strings.ContainsRune(`<>|/\`, r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Persona renders the behavioral contract for a generated role.
func Persona(topic, name, stance, personality string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n\n", name)
	fmt.Fprintf(&b, "Your stance: %s\n\n", strings.TrimSpace(stance))
	fmt.Fprintf(&b, "Your personality: %s\n\n", strings.TrimSpace(personality))
	b.WriteString("Discussion rules:\n")
	b.WriteString("1. Stick to your position, view the issue from your perspective\n")
	fmt.Fprintf(&b, "2. When others share opinions (including the user named %q), you should:\n", discussion.HumanID)
	b.WriteString("   - If you agree, explain why and add your perspective\n")
	b.WriteString("   - If you disagree, directly challenge and refute\n")
	fmt.Fprintf(&b, "   - Use \"@[name]\" to respond to someone directly (e.g. \"@%s\")\n", discussion.HumanID)
	b.WriteString("   - Pay special attention to the user's questions and respond actively\n")
	b.WriteString("3. Keep it brief and powerful (2-3 sentences)\n")
	b.WriteString("4. Show your personality, speak in character")
	if hasHan(topic) {
		b.WriteString("\n\nAnswer in Chinese.")
	}
	return b.String()
}

func buildRolePrompt(topic string, n int) string {
	var b strings.Builder
	b.WriteString("You are an expert in generating discussion personas for debates.\n\n")
	fmt.Fprintf(&b, "The topic the user wants to discuss is: %q\n\n", topic)
	fmt.Fprintf(&b, "Generate the %d most suitable discussion roles for this topic. The roles should:\n", n)
	b.WriteString("1. View the topic from different standpoints\n")
	b.WriteString("2. Create interesting clashes of opinion\n")
	b.WriteString("3. Have short, powerful names (2-4 words)\n")
	b.WriteString("4. Have clear standpoints and distinct personalities\n\n")
	b.WriteString("Return JSON in this shape:\n")
	b.WriteString(`{"roles": [{"name": "Role Name", "stance": "the role's standpoint", "personality": "character traits and speaking style"}]}`)
	b.WriteString("\n\nReturn only JSON, nothing else.")
	return b.String()
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func namesOf(agents []discussion.Agent) []string {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name
	}
	return names
}

package discussion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BaSui01/agentpanel/types"
)

// Reserved speaker identities. Neither may be used as an agent name.
const (
	HumanID  = "You"
	SystemID = "system"
)

// Agent is a participant in a discussion.
type Agent struct {
	// Name is the identity used for turn bookkeeping and @mention matching.
	Name string `json:"name"`
	// Persona is the behavioral contract handed to the generation backend.
	Persona string `json:"persona"`

	DisplayName string            `json:"display_name,omitempty"`
	Stance      string            `json:"stance,omitempty"`
	Personality string            `json:"personality,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Label returns the display name, falling back to the identity.
func (a Agent) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// Registry is the ordered, immutable set of agents taking part in one
// discussion.
type Registry struct {
	agents []Agent
	index  map[string]int // normalized name -> position
}

// NewRegistry validates agents and builds the identity lookup table.
func NewRegistry(agents ...Agent) (*Registry, error) {
	if len(agents) == 0 {
		return nil, types.NotConfigured("registry must contain at least one agent")
	}

	r := &Registry{
		agents: make([]Agent, len(agents)),
		index:  make(map[string]int, len(agents)),
	}
	for i, a := range agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return nil, types.InvalidRequest("agent %d has an empty name", i)
		}
		if strings.EqualFold(name, HumanID) || strings.EqualFold(name, SystemID) {
			return nil, types.InvalidRequest("agent name %q is reserved", name)
		}
		key := normalizeIdentity(name)
		if _, dup := r.index[key]; dup {
			return nil, types.InvalidRequest("duplicate agent name %q", name)
		}
		a.Name = name
		a.Metadata = cloneMetadata(a.Metadata)
		r.agents[i] = a
		r.index[key] = i
	}
	return r, nil
}

// Len returns the number of agents.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.agents)
}

// At returns the agent at position i.
func (r *Registry) At(i int) Agent {
	return r.agents[i]
}

// First returns the registry's first agent, the selection fallback.
func (r *Registry) First() Agent {
	return r.agents[0]
}

// Agents returns a copy of the ordered agent list.
func (r *Registry) Agents() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Names returns the agent identities in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.agents))
	for i, a := range r.agents {
		names[i] = a.Name
	}
	return names
}

// Lookup finds an agent by identity, ignoring case and the "_" / " "
// distinction.
func (r *Registry) Lookup(name string) (Agent, bool) {
	if r == nil {
		return Agent{}, false
	}
	i, ok := r.index[normalizeIdentity(name)]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

// Contains reports whether name identifies a registered agent.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// ResolveSpeaker maps free text (typically a judge's answer) to a registered
// agent. Rules, first hit wins:
//
//  1. exact identity match
//  2. normalized match (case-insensitive, "_" treated as space, surrounding
//     punctuation such as "@", quotes and markdown emphasis stripped)
//  3. case-insensitive substring match, in registry order: the answer inside
//     a name, or a name inside the answer as a whole word
//  4. the registry's first agent
//
// matched is false only when rule 4 applied.
func ResolveSpeaker(r *Registry, raw string) (agent Agent, matched bool) {
	for _, a := range r.agents {
		if a.Name == raw {
			return a, true
		}
	}

	needle := normalizeIdentity(raw)
	if needle != "" {
		if i, ok := r.index[needle]; ok {
			return r.agents[i], true
		}
		for _, a := range r.agents {
			name := normalizeIdentity(a.Name)
			if strings.Contains(name, needle) || containsWord(needle, name) {
				return a, true
			}
		}
	}

	return r.First(), false
}

// ExtractMentions returns the agents addressed with an "@name" token in text,
// in order of first appearance and without duplicates.
func ExtractMentions(r *Registry, text string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for _, field := range strings.Fields(text) {
		at := strings.IndexByte(field, '@')
		if at < 0 {
			continue
		}
		token := strings.TrimFunc(field[at+1:], func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsDigit(c)
		})
		if token == "" {
			continue
		}
		a, ok := r.Lookup(token)
		if !ok || seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		mentions = append(mentions, a.Name)
	}
	return mentions
}

// containsWord reports whether word occurs in s without a letter or digit
// directly on either side. Han text has no word separators, so a Han rune
// next to the match counts as a boundary.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		first, _ := utf8.DecodeRuneInString(word)
		last, _ := utf8.DecodeLastRuneInString(word)
		if wordEdge(before, first) && wordEdge(after, last) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func wordEdge(outside, inside rune) bool {
	if outside == utf8.RuneError {
		return true
	}
	if unicode.Is(unicode.Han, outside) || unicode.Is(unicode.Han, inside) {
		return true
	}
	return !unicode.IsLetter(outside) && !unicode.IsDigit(outside)
}

func normalizeIdentity(s string) string {
	s = strings.TrimFunc(s, func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c) || unicode.IsSymbol(c)
	})
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

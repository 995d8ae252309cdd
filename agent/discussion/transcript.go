package discussion

import (
	"time"
)

// Kind tags who produced an utterance.
type Kind string

const (
	KindSystem Kind = "system" // topic framing, never counted
	KindHuman  Kind = "human"
	KindAgent  Kind = "agent"
)

// Utterance is one entry in a transcript.
type Utterance struct {
	Seq       int       `json:"seq"`
	SpeakerID string    `json:"speaker_id"`
	Text      string    `json:"text"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is an append-only log of utterances. Sequence numbers start at 0
// and are gap-free. A Transcript is not safe for concurrent use; the owning
// Discussion serializes access.
type Transcript struct {
	entries []Utterance
	now     func() time.Time
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Append records a new utterance and returns it with its sequence number.
func (t *Transcript) Append(speakerID, text string, kind Kind) Utterance {
	u := Utterance{
		Seq:       len(t.entries),
		SpeakerID: speakerID,
		Text:      text,
		Kind:      kind,
		CreatedAt: t.now(),
	}
	t.entries = append(t.entries, u)
	return u
}

// Len returns the number of utterances, system entries included.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// All returns a copy of every utterance in order.
func (t *Transcript) All() []Utterance {
	out := make([]Utterance, len(t.entries))
	copy(out, t.entries)
	return out
}

// Window returns the last k non-system utterances in order. k <= 0 yields
// an empty window.
func (t *Transcript) Window(k int) []Utterance {
	if k <= 0 {
		return nil
	}
	var rev []Utterance
	for i := len(t.entries) - 1; i >= 0 && len(rev) < k; i-- {
		if t.entries[i].Kind == KindSystem {
			continue
		}
		rev = append(rev, t.entries[i])
	}
	out := make([]Utterance, len(rev))
	for i, u := range rev {
		out[len(rev)-1-i] = u
	}
	return out
}

// Last returns the most recent non-system utterance.
func (t *Transcript) Last() (Utterance, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind != KindSystem {
			return t.entries[i], true
		}
	}
	return Utterance{}, false
}

// SpeakerCount is how often one agent spoke within a window.
type SpeakerCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Frequency tallies agent utterances in window for every registered agent,
// in registry order. Human and system entries are ignored.
func Frequency(r *Registry, window []Utterance) []SpeakerCount {
	counts := make(map[string]int, r.Len())
	for _, u := range window {
		if u.Kind == KindAgent {
			counts[u.SpeakerID]++
		}
	}
	out := make([]SpeakerCount, r.Len())
	for i, a := range r.agents {
		out[i] = SpeakerCount{Name: a.Name, Count: counts[a.Name]}
	}
	return out
}

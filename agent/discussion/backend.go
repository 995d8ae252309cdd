package discussion

import (
	"context"
)

// GenerationRequest is everything a speaker's backing model sees for one turn.
type GenerationRequest struct {
	DiscussionID string
	Speaker      Agent
	Topic        string
	// Window is the bounded transcript suffix, oldest first.
	Window      []Utterance
	Instruction string
	Style       StyleHints
}

// StyleHints shape the generated utterance.
type StyleHints struct {
	MaxSentences int
	FirstPerson  bool
}

// Backend produces one speaker's utterance.
type Backend interface {
	Generate(ctx context.Context, req *GenerationRequest) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req *GenerationRequest) (string, error)

// Generate implements Backend.
func (f BackendFunc) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	return f(ctx, req)
}

// Candidate is an agent as presented to the selection judge.
type Candidate struct {
	Name    string
	Summary string
}

// JudgeRequest carries the adaptive selector's inputs.
type JudgeRequest struct {
	Topic      string
	Candidates []Candidate
	Frequency  []SpeakerCount
	// Recent holds the latest non-system utterances, each already truncated.
	Recent []Utterance
	// Mentions lists agents addressed with @name in Recent. Advisory only.
	Mentions []string
	// HumanPriority is set when the latest non-system utterance is human; the
	// judge must then pick someone to answer it.
	HumanPriority bool
}

// Judge picks the next speaker. Its answer is free text, resolved leniently.
type Judge interface {
	Choose(ctx context.Context, req *JudgeRequest) (string, error)
}

// JudgeFunc adapts a function to Judge.
type JudgeFunc func(ctx context.Context, req *JudgeRequest) (string, error)

// Choose implements Judge.
func (f JudgeFunc) Choose(ctx context.Context, req *JudgeRequest) (string, error) {
	return f(ctx, req)
}

// Sink receives every utterance right after it is appended, in order.
type Sink interface {
	Record(ctx context.Context, discussionID string, u Utterance) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, discussionID string, u Utterance) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, discussionID string, u Utterance) error {
	return f(ctx, discussionID, u)
}

type nopSink struct{}

func (nopSink) Record(context.Context, string, Utterance) error { return nil }

type multiSink []Sink

// MultiSink fans an utterance out to every sink in order. Every sink sees the
// utterance even if an earlier one failed; the first error is returned.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Record(ctx context.Context, discussionID string, u Utterance) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, discussionID, u); err != nil && first == nil {
			first = err
		}
	}
	return first
}

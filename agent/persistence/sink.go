package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/BaSui01/agentpanel/agent/discussion"
)

// NewSink adapts a TranscriptStore to discussion.Sink so every appended
// utterance is written through in order.
func NewSink(store TranscriptStore) discussion.Sink {
	return discussion.SinkFunc(func(ctx context.Context, discussionID string, u discussion.Utterance) error {
		return store.AppendMessage(ctx, MessageFromUtterance(discussionID, u))
	})
}

// MessageFromUtterance converts a transcript entry into a storage record.
func MessageFromUtterance(discussionID string, u discussion.Utterance) *MessageRecord {
	return &MessageRecord{
		ID:           uuid.New().String(),
		DiscussionID: discussionID,
		Seq:          u.Seq,
		Speaker:      u.SpeakerID,
		Content:      u.Text,
		Kind:         string(u.Kind),
		CreatedAt:    u.CreatedAt,
	}
}

// Utterance converts a storage record back into a transcript entry.
func (m *MessageRecord) Utterance() discussion.Utterance {
	return discussion.Utterance{
		Seq:       m.Seq,
		SpeakerID: m.Speaker,
		Text:      m.Content,
		Kind:      discussion.Kind(m.Kind),
		CreatedAt: m.CreatedAt,
	}
}

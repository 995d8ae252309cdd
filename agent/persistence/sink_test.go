package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/types"
)

func TestSink_WritesThroughInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateDiscussion(ctx, &DiscussionRecord{ID: "d1", Topic: "lakes", Mode: "round_robin"}))

	backend := discussion.BackendFunc(func(_ context.Context, req *discussion.GenerationRequest) (string, error) {
		return req.Speaker.Name + " speaks", nil
	})
	cfg := discussion.DefaultConfig()
	cfg.MaxTurns = 2
	cfg.DefaultMode = discussion.ModeRoundRobin

	d := discussion.New("d1", backend, cfg, discussion.WithSink(NewSink(store)))
	reg, err := discussion.NewRegistry(discussion.Agent{Name: "A"}, discussion.Agent{Name: "B"})
	require.NoError(t, err)

	_, err = d.Init(ctx, "lakes", reg)
	require.NoError(t, err)
	_, err = d.InjectHuman(ctx, "hi all")
	require.NoError(t, err)
	_, err = d.Advance(ctx)
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, discussion.SystemID, msgs[0].Speaker)
	assert.Equal(t, string(discussion.KindSystem), msgs[0].Kind)
	assert.Equal(t, discussion.HumanID, msgs[1].Speaker)
	assert.Equal(t, "hi all", msgs[1].Content)
	assert.Equal(t, "A speaks", msgs[2].Content)

	for i, m := range msgs {
		u := m.Utterance()
		assert.Equal(t, d.Transcript()[i].Text, u.Text)
		assert.Equal(t, i, u.Seq)
	}
}

func TestSink_FailureSurfacesAsPersistenceError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore() // discussion record never created

	backend := discussion.BackendFunc(func(context.Context, *discussion.GenerationRequest) (string, error) {
		return "x", nil
	})
	d := discussion.New("d1", backend, discussion.DefaultConfig(), discussion.WithSink(NewSink(store)))
	reg, err := discussion.NewRegistry(discussion.Agent{Name: "A"})
	require.NoError(t, err)

	framing, err := d.Init(ctx, "lakes", reg)
	assert.True(t, types.IsErrorCode(err, types.ErrPersistence))
	assert.Equal(t, 0, framing.Seq)
	assert.Equal(t, discussion.StateRunning, d.State())
}

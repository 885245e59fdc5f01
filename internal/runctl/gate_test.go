package runctl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

func TestCheckpointOpen(t *testing.T) {
	require.NoError(t, New().Checkpoint(context.Background()))
}

func TestPauseBlocksUntilResume(t *testing.T) {
	g := New()
	require.True(t, g.Pause())
	assert.False(t, g.Pause())
	assert.True(t, g.Paused())

	done := make(chan error, 1)
	go func() { done <- g.Checkpoint(context.Background()) }()

	select {
	case <-done:
		t.Fatal("checkpoint returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, g.Resume())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not resume")
	}
}

func TestCancelReleasesPausedCheckpoint(t *testing.T) {
	g := New()
	g.Pause()

	done := make(chan error, 1)
	go func() { done <- g.Checkpoint(context.Background()) }()
	g.Cancel()
	g.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.True(t, apperrors.IsCancelled(err))
	case <-time.After(time.Second):
		t.Fatal("cancel did not release checkpoint")
	}
	assert.False(t, g.Pause())
	assert.True(t, g.Cancelled())
}

func TestCheckpointHonoursContext(t *testing.T) {
	g := New()
	g.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Checkpoint(ctx), context.DeadlineExceeded)
}

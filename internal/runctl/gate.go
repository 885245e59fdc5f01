// Package runctl provides the cooperative pause/resume/cancel signal that
// long-running loops check between iterations.
package runctl

import (
	"context"
	"sync"

	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

// ErrCancelled is returned by Checkpoint once Cancel was called
var ErrCancelled = apperrors.NewCancelledError("run cancelled")

// Gate is checked between loop iterations, never inside an external call
type Gate struct {
	mu         sync.Mutex
	paused     bool
	resume     chan struct{}
	cancelled  chan struct{}
	cancelOnce sync.Once
}

// New returns an open gate
func New() *Gate {
	return &Gate{cancelled: make(chan struct{})}
}

// Pause makes the next Checkpoint block until Resume or Cancel.
// It reports whether the gate changed state.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused || g.isCancelled() {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

// Resume releases a paused gate
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	return true
}

// Cancel stops all future checkpoints; it is safe to call more than once
func (g *Gate) Cancel() {
	g.cancelOnce.Do(func() { close(g.cancelled) })
}

// Paused reports whether the gate is paused
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Cancelled reports whether Cancel was called
func (g *Gate) Cancelled() bool {
	return g.isCancelled()
}

func (g *Gate) isCancelled() bool {
	select {
	case <-g.cancelled:
		return true
	default:
		return false
	}
}

// Checkpoint returns nil when work may continue. It blocks while paused and
// returns ErrCancelled or the context error when the run must stop.
func (g *Gate) Checkpoint(ctx context.Context) error {
	for {
		if g.isCancelled() {
			return ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		g.mu.Lock()
		paused, resume := g.paused, g.resume
		g.mu.Unlock()
		if !paused {
			return nil
		}

		select {
		case <-resume:
		case <-g.cancelled:
		case <-ctx.Done():
		}
	}
}

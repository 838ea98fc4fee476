package housekeeping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/weddingsync/internal/logging"
)

type recordingSweeper struct {
	mu         sync.Mutex
	calls      int
	retentions []time.Duration
	err        error
}

func (s *recordingSweeper) Sweep(_ context.Context, retention time.Duration, dryRun bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.retentions = append(s.retentions, retention)
	if dryRun {
		return 0, errors.New("housekeeping must not dry run")
	}
	return 1, s.err
}

func (s *recordingSweeper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestNew(t *testing.T) {
	_, err := New(&recordingSweeper{}, 0, time.Hour, logging.Nop())
	assert.Error(t, err)

	_, err = New(&recordingSweeper{}, time.Hour, 0, logging.Nop())
	assert.Error(t, err)
}

func TestHousekeeping_RunOnce(t *testing.T) {
	sweeper := &recordingSweeper{}
	h, err := New(sweeper, time.Hour, 48*time.Hour, logging.Nop())
	require.NoError(t, err)

	count, err := h.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []time.Duration{48 * time.Hour}, sweeper.retentions)

	sweeper.err = errors.New("store down")
	_, err = h.RunOnce(context.Background())
	assert.EqualError(t, err, "store down")
}

func TestHousekeeping_Run(t *testing.T) {
	t.Run("sweeps every interval until cancelled", func(t *testing.T) {
		sweeper := &recordingSweeper{}
		h, err := New(sweeper, 10*time.Millisecond, time.Hour, logging.Nop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.Run(ctx) }()

		assert.Eventually(t, func() bool { return sweeper.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("housekeeping did not stop")
		}
	})

	t.Run("keeps running after a failed sweep", func(t *testing.T) {
		sweeper := &recordingSweeper{err: errors.New("store down")}
		h, err := New(sweeper, 10*time.Millisecond, time.Hour, logging.Nop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = h.Run(ctx) }()

		assert.Eventually(t, func() bool { return sweeper.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	})
}

package reaper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int64
	n     int64
	err   error
	panic bool
}

func (s *countingSweeper) Reap(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	if s.panic {
		panic("sweep exploded")
	}
	return s.n, s.err
}

func TestRunOnce(t *testing.T) {
	s := &countingSweeper{n: 3}
	r := New(s, time.Hour, logging.Nop())

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), s.calls.Load())
}

func TestRunOnce_Error(t *testing.T) {
	cause := errors.New("db down")
	r := New(&countingSweeper{err: cause}, time.Hour, logging.Nop())

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestRun_RejectsSubSecondPeriod(t *testing.T) {
	r := New(&countingSweeper{}, 10*time.Millisecond, logging.Nop())
	assert.Error(t, r.Run(context.Background()))
}

func TestRun_SweepsAndStops(t *testing.T) {
	s := &countingSweeper{}
	r := New(s, time.Second, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return s.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestRun_SurvivesFailingSweeps(t *testing.T) {
	s := &countingSweeper{panic: true}
	r := New(s, time.Second, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return s.calls.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

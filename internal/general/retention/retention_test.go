package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"transport-connect/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (p *countingPurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, now)
	return 2, p.err
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler(logger.Discard(), &countingPurger{}, "every tuesday")
	assert.Error(t, err)
}

func TestNextTick(t *testing.T) {
	s, err := NewScheduler(logger.Discard(), &countingPurger{}, "*/10 * * * *")
	require.NoError(t, err)

	next, err := s.Next(time.Date(2026, 3, 1, 9, 3, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC), next)

	next, err = s.Next(time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 20, 0, 0, time.UTC), next)
}

func TestRunPurgesOnEachTick(t *testing.T) {
	p := &countingPurger{}
	s, err := NewScheduler(logger.Discard(), p, "* * * * *")
	require.NoError(t, err)

	ticks := make(chan time.Time)
	var waits []time.Duration
	var mu sync.Mutex
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 30, 0, time.UTC) }
	s.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	ticks <- time.Time{}
	ticks <- time.Time{}
	require.Eventually(t, func() bool { return p.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 30*time.Second, waits[0])
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	s, err := NewScheduler(logger.Discard(), &countingPurger{err: errors.New("db down")}, "* * * * *")
	require.NoError(t, err)
	assert.Zero(t, s.RunOnce(context.Background()))
}

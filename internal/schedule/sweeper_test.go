// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
}

func (c *countingSweeper) Sweep(_ context.Context, maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.maxAge = maxAge
	return 2
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRunOnce(t *testing.T) {
	sw := &countingSweeper{}
	s := New(sw, "@every 1h", 168*time.Hour, nil)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, 168*time.Hour, sw.maxAge)

	last, removed, next := s.Status()
	assert.False(t, last.IsZero())
	assert.Equal(t, 2, removed)
	assert.True(t, next.IsZero(), "not started")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(&countingSweeper{}, "every now and then", time.Hour, nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestStartRunsOnSchedule(t *testing.T) {
	sw := &countingSweeper{}
	s := New(sw, "@every 1s", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	_, _, next := s.Status()
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return sw.count() >= 1 }, 3*time.Second, 50*time.Millisecond)

	s.Stop()
	s.Stop()
	_, _, next = s.Status()
	assert.True(t, next.IsZero())
}

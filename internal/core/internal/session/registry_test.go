package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/session"

	"github.com/jfk9w-go/flu/syncf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	var (
		ctx      = context.Background()
		now      = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
		clock    = syncf.ClockFunc(func() time.Time { return now })
		fake     = newFakeResolver()
		releaser = new(releaser)
		registry = &session.Registry{
			Clock: clock,
			TTL:   time.Hour,
			New: func(id string) *session.Coordinator {
				c := newCoordinator(fake, releaser)
				c.ID = id
				c.Clock = clock
				return c
			},
		}
	)

	defer registry.Close()

	first, created, err := registry.GetOrCreate(ctx, "unknown")
	require.Nil(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "unknown", first.ID)

	same, created, err := registry.GetOrCreate(ctx, first.ID)
	require.Nil(t, err)
	assert.False(t, created)
	assert.Same(t, first, same)

	_, _ = first.SelectFile(ctx, photo())
	ref, err := first.Generate(ctx)
	require.Nil(t, err)
	fake.outcomes <- outcome{ref: local("/media/1")}
	_, err = await(t, ref)
	require.Nil(t, err)

	now = now.Add(30 * time.Minute)
	second, _, err := registry.GetOrCreate(ctx, "")
	require.Nil(t, err)
	assert.Equal(t, 0, registry.Expire(ctx))

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, registry.Expire(ctx))
	assert.Equal(t, 1, releaser.count("/media/1"))

	_, ok := registry.Get(ctx, first.ID)
	assert.False(t, ok)
	_, ok = registry.Get(ctx, second.ID)
	assert.True(t, ok)
}

func TestRegistry_Run(t *testing.T) {
	var (
		ctx   = context.Background()
		ticks int64
		clock = syncf.ClockFunc(func() time.Time {
			return time.Unix(atomic.AddInt64(&ticks, 1)*3600, 0)
		})
		registry = &session.Registry{
			Clock: clock,
			TTL:   time.Minute,
			New: func(id string) *session.Coordinator {
				c := newCoordinator(newFakeResolver(), new(releaser))
				c.ID = id
				c.Clock = clock
				return c
			},
		}
	)

	defer registry.Close()

	c, _, err := registry.GetOrCreate(ctx, "")
	require.Nil(t, err)
	require.Nil(t, registry.Run(ctx, 10*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, ok := registry.Get(ctx, c.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_KeepsRunningGeneration(t *testing.T) {
	var (
		ctx      = context.Background()
		started  = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
		fake     = newFakeResolver()
		registry = &session.Registry{
			Clock: syncf.ClockFunc(func() time.Time { return started.Add(3 * time.Hour) }),
			TTL:   time.Hour,
			New: func(id string) *session.Coordinator {
				c := newCoordinator(fake, new(releaser))
				c.ID = id
				c.Clock = syncf.ClockFunc(func() time.Time { return started })
				return c
			},
		}
	)

	defer registry.Close()

	c, _, err := registry.GetOrCreate(ctx, "")
	require.Nil(t, err)
	_, _ = c.SelectFile(ctx, photo())
	ref, err := c.Generate(ctx)
	require.Nil(t, err)
	assert.Equal(t, 0, registry.Expire(ctx))

	fake.outcomes <- outcome{ref: local("/media/kept")}
	state, err := await(t, ref)
	require.Nil(t, err)
	assert.Equal(t, session.Succeeded, state.Status)

	_, ok := registry.Get(ctx, c.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, registry.Expire(ctx))
}

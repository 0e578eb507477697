/*-------------------------------------------------------------------------
 *
 * partitions_test.go
 *    Tests for per-project actors
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/partitions_test.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noStep(ctx context.Context, a *actor, planID uuid.UUID) bool { return false }

func actorCount(p *partitions, projectID string) int {
	s := &p.shards[shardIndex(projectID)]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[projectID]; ok {
		return 1
	}
	return 0
}

func TestPartitionsKeepSubmissionOrder(t *testing.T) {
	p := newPartitions(4, time.Minute, noStep)
	defer p.close()
	ctx := context.Background()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, p.submit(ctx, "proj", func(ctx context.Context, a *actor) {
			order = append(order, i)
		}))
	}

	got, err := call(ctx, p, "proj", func(ctx context.Context, a *actor) ([]int, error) {
		return append([]int(nil), order...), nil
	})
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPartitionsRunScheduledTurns(t *testing.T) {
	var turns atomic.Int64
	step := func(ctx context.Context, a *actor, planID uuid.UUID) bool {
		return turns.Add(1) < 3
	}
	p := newPartitions(4, time.Minute, step)
	defer p.close()

	planID := uuid.New()
	require.NoError(t, p.submit(context.Background(), "proj", func(ctx context.Context, a *actor) {
		a.schedule(planID)
		a.schedule(planID)
	}))

	require.Eventually(t, func() bool { return turns.Load() == 3 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 3, turns.Load())
}

func TestPartitionsInterleavePlans(t *testing.T) {
	var seen []uuid.UUID
	remaining := map[uuid.UUID]int{}
	step := func(ctx context.Context, a *actor, planID uuid.UUID) bool {
		seen = append(seen, planID)
		remaining[planID]--
		return remaining[planID] > 0
	}
	p := newPartitions(4, time.Minute, step)
	defer p.close()
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	_, err := call(ctx, p, "proj", func(ctx context.Context, a *actor) (struct{}, error) {
		remaining[first] = 2
		remaining[second] = 2
		a.schedule(first)
		a.schedule(second)
		return struct{}{}, nil
	})
	require.NoError(t, err)

	var got []uuid.UUID
	require.Eventually(t, func() bool {
		got, err = call(ctx, p, "proj", func(ctx context.Context, a *actor) ([]uuid.UUID, error) {
			return append([]uuid.UUID(nil), seen...), nil
		})
		return err == nil && len(got) == 4
	}, time.Second, time.Millisecond)
	assert.Equal(t, []uuid.UUID{first, second, first, second}, got)
}

func TestPartitionsUnscheduleDropsQueuedTurns(t *testing.T) {
	var turns atomic.Int64
	p := newPartitions(4, time.Minute, func(ctx context.Context, a *actor, planID uuid.UUID) bool {
		turns.Add(1)
		return false
	})
	defer p.close()
	ctx := context.Background()

	planID := uuid.New()
	_, err := call(ctx, p, "proj", func(ctx context.Context, a *actor) (struct{}, error) {
		a.schedule(planID)
		a.state[planID] = &runState{}
		a.unschedule(planID)
		return struct{}{}, nil
	})
	require.NoError(t, err)

	state, err := call(ctx, p, "proj", func(ctx context.Context, a *actor) (int, error) {
		return len(a.ready) + len(a.state), nil
	})
	require.NoError(t, err)
	assert.Zero(t, state)
	assert.Zero(t, turns.Load())
}

func TestPartitionsExitWhenIdle(t *testing.T) {
	p := newPartitions(4, 20*time.Millisecond, noStep)
	defer p.close()
	ctx := context.Background()

	_, err := call(ctx, p, "idle", func(ctx context.Context, a *actor) (bool, error) { return true, nil })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return actorCount(p, "idle") == 0 && p.running.Load() == 0
	}, time.Second, 5*time.Millisecond)

	v, err := call(ctx, p, "idle", func(ctx context.Context, a *actor) (string, error) { return "again", nil })
	require.NoError(t, err)
	assert.Equal(t, "again", v)
}

func TestPartitionsRecoverFromPanics(t *testing.T) {
	p := newPartitions(4, time.Minute, noStep)
	defer p.close()
	ctx := context.Background()

	require.NoError(t, p.submit(ctx, "proj", func(ctx context.Context, a *actor) {
		panic("boom")
	}))
	v, err := call(ctx, p, "proj", func(ctx context.Context, a *actor) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPartitionsClosed(t *testing.T) {
	p := newPartitions(4, time.Minute, noStep)
	p.close()
	p.close()

	err := p.submit(context.Background(), "proj", func(ctx context.Context, a *actor) {})
	assert.True(t, errors.Is(err, ErrEngineClosed))
}

func TestShardIndexIsStable(t *testing.T) {
	assert.Equal(t, shardIndex("acme/web"), shardIndex("acme/web"))
	for _, id := range []string{"", "a", "acme/web", uuid.NewString()} {
		i := shardIndex(id)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, shardCount)
	}
}

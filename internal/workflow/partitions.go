/*-------------------------------------------------------------------------
 *
 * partitions.go
 *    Per-project single-writer actors
 *
 * Every mutation of a project's plans runs on that project's actor
 * goroutine. Actors are spread over shards keyed by FNV-1a of the project
 * id, exit after an idle period and are recreated on demand.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/partitions.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

const shardCount = 32

/* message runs on the owning actor goroutine */
type message func(ctx context.Context, a *actor)

/* stepFunc runs one turn of a plan; it returns true to be scheduled again */
type stepFunc func(ctx context.Context, a *actor, planID uuid.UUID) bool

type actor struct {
	projectID string
	mailbox   chan message
	pending   atomic.Int64

	/* Owned by the actor goroutine */
	ready  []uuid.UUID
	queued map[uuid.UUID]bool
	state  map[uuid.UUID]*runState
}

type shard struct {
	mu     sync.Mutex
	actors map[string]*actor
}

type partitions struct {
	shards      [shardCount]shard
	mailboxSize int
	idle        time.Duration
	step        stepFunc

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
	running atomic.Int64
}

func newPartitions(mailboxSize int, idle time.Duration, step stepFunc) *partitions {
	if mailboxSize <= 0 {
		mailboxSize = 64
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &partitions{mailboxSize: mailboxSize, idle: idle, step: step, ctx: ctx, cancel: cancel}
	for i := range p.shards {
		p.shards[i].actors = make(map[string]*actor)
	}
	return p
}

func shardIndex(projectID string) int {
	h := fnv.New32a()
	h.Write([]byte(projectID))
	return int(h.Sum32() % shardCount)
}

/*
 * submit queues msg on the project's actor. pending is raised under the
 * shard lock so an idle actor never exits with a message on its way.
 */
func (p *partitions) submit(ctx context.Context, projectID string, msg message) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}
	s := &p.shards[shardIndex(projectID)]

	s.mu.Lock()
	a, ok := s.actors[projectID]
	if !ok {
		a = &actor{
			projectID: projectID,
			mailbox:   make(chan message, p.mailboxSize),
			queued:    make(map[uuid.UUID]bool),
			state:     make(map[uuid.UUID]*runState),
		}
		s.actors[projectID] = a
		p.wg.Add(1)
		metrics.SetActivePartitions(int(p.running.Add(1)))
		go p.run(s, a)
	}
	a.pending.Add(1)
	s.mu.Unlock()

	select {
	case a.mailbox <- msg:
		return nil
	case <-ctx.Done():
		a.pending.Add(-1)
		return ctx.Err()
	case <-p.ctx.Done():
		a.pending.Add(-1)
		return ErrEngineClosed
	}
}

/* call submits fn and waits for its result */
func call[T any](ctx context.Context, p *partitions, projectID string, fn func(ctx context.Context, a *actor) (T, error)) (T, error) {
	type reply struct {
		value T
		err   error
	}
	var zero T
	done := make(chan reply, 1)
	err := p.submit(ctx, projectID, func(ctx context.Context, a *actor) {
		v, err := fn(ctx, a)
		done <- reply{value: v, err: err}
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.ctx.Done():
		return zero, ErrEngineClosed
	}
}

func (p *partitions) run(s *shard, a *actor) {
	defer p.wg.Done()
	defer func() {
		metrics.SetActivePartitions(int(p.running.Add(-1)))
	}()

	timer := time.NewTimer(p.idle)
	defer timer.Stop()

	for {
		/* Mailbox first so control messages are not starved by long plans */
		if len(a.ready) > 0 {
			select {
			case msg := <-a.mailbox:
				p.handle(a, msg)
				continue
			case <-p.ctx.Done():
				return
			default:
			}
			planID := a.ready[0]
			a.ready = a.ready[1:]
			delete(a.queued, planID)
			p.runStep(a, planID)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.idle)

		select {
		case msg := <-a.mailbox:
			p.handle(a, msg)
		case <-p.ctx.Done():
			return
		case <-timer.C:
			s.mu.Lock()
			if a.pending.Load() == 0 && len(a.ready) == 0 {
				delete(s.actors, a.projectID)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}
}

func (p *partitions) handle(a *actor, msg message) {
	a.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			metrics.ErrorWithContext(p.ctx, "Partition message panicked", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"project_id": a.projectID,
				"stack":      string(debug.Stack()),
			})
		}
	}()
	msg(p.ctx, a)
}

func (p *partitions) runStep(a *actor, planID uuid.UUID) {
	if p.step(p.ctx, a, planID) {
		a.schedule(planID)
	}
}

/* schedule queues a turn for planID; only called on the actor goroutine */
func (a *actor) schedule(planID uuid.UUID) {
	if a.queued[planID] {
		return
	}
	a.queued[planID] = true
	a.ready = append(a.ready, planID)
}

/* unschedule drops queued turns and cached run state for planID */
func (a *actor) unschedule(planID uuid.UUID) {
	if a.queued[planID] {
		delete(a.queued, planID)
		for i, id := range a.ready {
			if id == planID {
				a.ready = append(a.ready[:i], a.ready[i+1:]...)
				break
			}
		}
	}
	delete(a.state, planID)
}

/* close stops every actor and waits for in-flight work */
func (p *partitions) close() {
	if p.closed.Swap(true) {
		return
	}
	p.cancel()
	p.wg.Wait()
}

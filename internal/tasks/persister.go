package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type persistKind int

const (
	opSave persistKind = iota
	opDelete
	opClear
)

type persistOp struct {
	kind persistKind
	task Task
}

// persister applies store writes in the order they were committed in memory.
// enqueue never blocks, so a slow database cannot stall the task lock.
type persister struct {
	store  Store
	logger *zap.Logger

	mu     sync.Mutex
	queue  []persistOp
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newPersister(store Store, logger *zap.Logger) *persister {
	p := &persister{
		store:  store,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(op persistOp) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, op)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		closed := p.closed
		p.mu.Unlock()

		for _, op := range batch {
			p.apply(op)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-p.wake
		}
	}
}

func (p *persister) apply(op persistOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	switch op.kind {
	case opSave:
		err = p.store.SaveTask(ctx, op.task)
	case opDelete:
		err = p.store.DeleteTask(ctx, op.task.ID)
		if errors.Is(err, ErrStoreNotFound) {
			err = nil
		}
	case opClear:
		err = p.store.DeleteAll(ctx)
	}
	if err != nil {
		p.logger.Error("task persistence failed",
			zap.Int("op", int(op.kind)),
			zap.String("task_id", op.task.ID),
			zap.Error(err),
		)
	}
}

// close drains queued writes and stops the worker.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.done
}

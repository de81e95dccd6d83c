// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"context"
	"sync"
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs at most one cancellable task per port. Starting a task
// for a port cancels the previous one and waits for it to return first.
type Supervisor struct {
	parent context.Context

	mu    sync.Mutex
	tasks map[uint8]*task
}

// NewSupervisor creates a supervisor whose tasks are cancelled with parent
func NewSupervisor(parent context.Context) *Supervisor {
	return &Supervisor{
		parent: parent,
		tasks:  make(map[uint8]*task),
	}
}

// Start replaces the task for id with fn
func (s *Supervisor) Start(id uint8, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(s.parent)
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tasks[id]
	s.tasks[id] = t
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	go func() {
		defer close(t.done)
		defer cancel()
		fn(ctx)
	}()
}

// Cancel stops the task for id and waits for it to return
func (s *Supervisor) Cancel(id uint8) {
	s.mu.Lock()
	t := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if t != nil {
		t.cancel()
		<-t.done
	}
}

// Running reports whether a task for id has not yet returned
func (s *Supervisor) Running(id uint8) bool {
	s.mu.Lock()
	t := s.tasks[id]
	s.mu.Unlock()

	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// StopAll cancels every task and waits for all of them
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[uint8]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

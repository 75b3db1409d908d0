// Package task implements the per-session background task service (§5):
// Dispatch(session) cancels any prior task for the same session id and
// starts a new one, enforcing at-most-one active processing cycle per
// session.
package task

import (
	"context"
	"sync"
)

// Func is the work a dispatched task performs. It must itself honor ctx
// cancellation cooperatively at every suspension point.
type Func func(ctx context.Context)

type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service maps session id to its currently running task, mirroring §5's
// "global background task service".
type Service struct {
	mu    sync.Mutex
	tasks map[string]*entry
}

// New returns an empty Service.
func New() *Service {
	return &Service{tasks: make(map[string]*entry)}
}

// Dispatch cancels the existing task for sessionID (if any) and starts fn
// as a new one, waiting for the prior task to fully stop before starting
// the new one so the two never race on the same session's state. Tasks are
// keyed by sessionID only; no name or label is attached to the goroutine.
func (s *Service) Dispatch(parent context.Context, sessionID string, fn Func) {
	ctx, cancel := context.WithCancel(parent)
	e := &entry{cancel: cancel, done: make(chan struct{})}

	for {
		s.mu.Lock()
		prior := s.tasks[sessionID]
		if prior == nil {
			s.tasks[sessionID] = e
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		prior.cancel()
		<-prior.done
	}

	go func() {
		defer close(e.done)
		defer func() {
			s.mu.Lock()
			if s.tasks[sessionID] == e {
				delete(s.tasks, sessionID)
			}
			s.mu.Unlock()
		}()
		fn(ctx)
	}()
}

// Cancel stops the running task for sessionID, if any, without starting a
// replacement.
func (s *Service) Cancel(sessionID string) {
	s.mu.Lock()
	e := s.tasks[sessionID]
	s.mu.Unlock()
	if e != nil {
		e.cancel()
	}
}

// Active reports whether a task is currently running for sessionID.
func (s *Service) Active(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[sessionID]
	return ok
}

// Package session runs the single coordinating loop that owns the compiler,
// the catalog and the pending request. Workers execute requests on their own
// goroutines and report back over a channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/funnyzak/reqput/internal/catalog"
	"github.com/funnyzak/reqput/internal/group"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/request"
)

var (
	// ErrClosed is returned by calls made after Run has returned
	ErrClosed = errors.New("session closed")
	// ErrUnknownGroup is returned when a group id is not in the registry
	ErrUnknownGroup = errors.New("unknown group")
)

// Executor performs one request synchronously
type Executor interface {
	Execute(ctx context.Context, req *request.Request) (*request.Response, error)
}

// Result is what a worker sends back: exactly one per dispatched request.
type Result struct {
	ID       uint32
	Request  *request.Request
	Response *request.Response
	Err      error
}

// Outcome is a live result after the coordinator has handled it.
type Outcome struct {
	ID       uint32            `json:"id"`
	GroupID  string            `json:"group_id"`
	Request  *request.Request  `json:"request"`
	Response *request.Response `json:"response,omitempty"`
	Err      error             `json:"-"`
	StoreErr error             `json:"-"`
	Entries  []storage.Entry   `json:"entries,omitempty"`
}

// Listener is notified on the session goroutine; implementations must not block.
type Listener interface {
	OnOutcome(Outcome)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Outcome)

// OnOutcome implements Listener
func (f ListenerFunc) OnOutcome(o Outcome) { f(o) }

// Session coordinates compile, dispatch and result handling
type Session struct {
	compiler *request.Compiler
	executor Executor
	catalog  *catalog.Catalog
	groups   *group.Registry
	log      logger.Logger

	calls   chan func()
	results chan Result
	done    chan struct{}

	// owned by the loop
	pending    uint32
	hasPending bool
	listeners  []Listener

	workers sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc

	// onDiscard observes stale results, used by tests
	onDiscard func(Result)
}

// New creates a session. Run must be started before any other method is used.
func New(compiler *request.Compiler, executor Executor, cat *catalog.Catalog, groups *group.Registry, log logger.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		compiler: compiler,
		executor: executor,
		catalog:  cat,
		groups:   groups,
		log:      log,
		calls:    make(chan func()),
		results:  make(chan Result, 16),
		done:     make(chan struct{}),
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// Run processes calls and worker results until ctx is done. Workers still in
// flight are released on return.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.stop()
		s.workers.Wait()
		close(s.done)
	}()

	s.log.Debug("Session loop started", "group", s.catalog.GroupID())
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Session loop stopping")
			return nil
		case fn := <-s.calls:
			fn()
		case res := <-s.results:
			s.handle(res)
		}
	}
}

// Call runs fn on the session goroutine and waits for it to finish.
func (s *Session) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// AddListener registers l for live outcomes
func (s *Session) AddListener(ctx context.Context, l Listener) error {
	return s.Call(ctx, func() {
		s.listeners = append(s.listeners, l)
	})
}

// Submit compiles text against the active group, marks it pending and
// dispatches it. Compile errors are returned directly and leave the pending
// request alone.
func (s *Session) Submit(ctx context.Context, text string) (uint32, error) {
	var (
		id  uint32
		err error
	)
	callErr := s.Call(ctx, func() {
		g, ok := s.groups.Find(s.catalog.GroupID())
		if !ok {
			err = fmt.Errorf("%w: %q", ErrUnknownGroup, s.catalog.GroupID())
			return
		}
		var req *request.Request
		req, err = s.compiler.Compile(text, &g)
		if err != nil {
			return
		}
		id = req.ID
		if s.hasPending {
			s.log.Debug("Superseding pending request", "old", s.pending, "new", id)
		}
		s.pending, s.hasPending = id, true
		s.dispatch(req.Clone())
	})
	if callErr != nil {
		return 0, callErr
	}
	return id, err
}

// Cancel forgets the pending request. The worker keeps running; its result
// is dropped when it arrives.
func (s *Session) Cancel(ctx context.Context) (uint32, bool, error) {
	var (
		id  uint32
		had bool
	)
	err := s.Call(ctx, func() {
		id, had = s.pending, s.hasPending
		s.hasPending = false
	})
	if had {
		s.log.Info("Request cancelled", "id", id)
	}
	return id, had, err
}

// Pending returns the id the session is waiting for, if any
func (s *Session) Pending(ctx context.Context) (uint32, bool, error) {
	var (
		id  uint32
		had bool
	)
	err := s.Call(ctx, func() {
		id, had = s.pending, s.hasPending
	})
	return id, had, err
}

// SwitchGroup makes groupID active and reloads the visible list. A pending
// request is dropped so its result cannot land in the new group.
func (s *Session) SwitchGroup(ctx context.Context, groupID, filter string) error {
	var err error
	callErr := s.Call(ctx, func() {
		if _, ok := s.groups.Find(groupID); !ok {
			err = fmt.Errorf("%w: %q", ErrUnknownGroup, groupID)
			return
		}
		if err = s.catalog.Load(groupID, filter); err != nil {
			return
		}
		s.hasPending = false
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// GroupID returns the active group
func (s *Session) GroupID(ctx context.Context) (string, error) {
	var id string
	err := s.Call(ctx, func() { id = s.catalog.GroupID() })
	return id, err
}

// Entries returns the visible list
func (s *Session) Entries(ctx context.Context) ([]storage.Entry, error) {
	var entries []storage.Entry
	err := s.Call(ctx, func() { entries = s.catalog.Entries() })
	return entries, err
}

// List queries storage for any group
func (s *Session) List(ctx context.Context, groupID, filter string) ([]storage.Entry, error) {
	var (
		entries []storage.Entry
		err     error
	)
	if callErr := s.Call(ctx, func() { entries, err = s.catalog.List(groupID, filter) }); callErr != nil {
		return nil, callErr
	}
	return entries, err
}

// Find returns the stored request text and response body
func (s *Session) Find(ctx context.Context, groupID, method, url string) (string, string, bool, error) {
	var (
		raw, body string
		ok        bool
		err       error
	)
	if callErr := s.Call(ctx, func() { raw, body, ok, err = s.catalog.Find(groupID, method, url) }); callErr != nil {
		return "", "", false, callErr
	}
	return raw, body, ok, err
}

// Delete removes a catalog entry
func (s *Session) Delete(ctx context.Context, groupID, method, url string) error {
	var err error
	if callErr := s.Call(ctx, func() { err = s.catalog.Delete(groupID, method, url) }); callErr != nil {
		return callErr
	}
	return err
}

// Rename sets the title of a catalog entry
func (s *Session) Rename(ctx context.Context, groupID, method, url, title string) error {
	var err error
	if callErr := s.Call(ctx, func() { err = s.catalog.Rename(groupID, method, url, title) }); callErr != nil {
		return callErr
	}
	return err
}

func (s *Session) dispatch(req *request.Request) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		resp, err := s.executor.Execute(s.baseCtx, req)
		select {
		case s.results <- Result{ID: req.ID, Request: req, Response: resp, Err: err}:
		case <-s.baseCtx.Done():
		}
	}()
}

func (s *Session) handle(res Result) {
	if !s.hasPending || res.ID != s.pending {
		s.log.Debug("Discarding stale result", "id", res.ID)
		if s.onDiscard != nil {
			s.onDiscard(res)
		}
		return
	}
	s.hasPending = false

	out := Outcome{
		ID:       res.ID,
		GroupID:  s.catalog.GroupID(),
		Request:  res.Request,
		Response: res.Response,
		Err:      res.Err,
	}
	if res.Err != nil {
		s.log.Warn("Request failed", "id", res.ID, "method", res.Request.Method, "url", res.Request.URL, "error", res.Err)
	} else if err := s.catalog.Put(res.Request, res.Response); err != nil {
		out.StoreErr = err
		s.log.Error("Failed to store request", "id", res.ID, "error", err)
	} else {
		s.catalog.Promote(res.Request.Method, res.Request.URL)
	}
	out.Entries = s.catalog.Entries()

	for _, l := range s.listeners {
		l.OnOutcome(out)
	}
}

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/core/internal/upload"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v3"
)

var (
	ErrInProgress = errors.New("generation is already in progress")
	ErrClosed     = errors.New("session is closed")
)

type Resolver interface {
	Resolve(ctx context.Context, endpoint string, req resolver.Request) (media.Ref, error)
}

// Coordinator owns the state of a single session.
// Only one generation may run at a time, and every local ref
// which stops being displayed is released exactly once.
type Coordinator struct {
	ID              string
	Clock           syncf.Clock
	Resolver        Resolver
	Releaser        media.Releaser
	Endpoints       map[media.Mode]string
	Timeout         time.Duration
	RequireIdentity bool
	Listener        func(state State)

	state      State
	lastActive time.Time
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	work       syncf.WaitGroup
	once       sync.Once
	mu         syncf.RWMutex
}

func (c *Coordinator) String() string {
	return "session." + c.ID
}

func (c *Coordinator) init() {
	c.once.Do(func() {
		c.state = NewState()
		c.lastActive = c.Clock.Now()
		c.ctx, c.cancel = context.WithCancel(context.Background())
	})
}

func (c *Coordinator) State(ctx context.Context) (State, error) {
	c.init()
	ctx, cancel := c.mu.RLock(ctx)
	if ctx.Err() != nil {
		return State{}, ctx.Err()
	}

	defer cancel()
	return c.state, nil
}

func (c *Coordinator) SelectFile(ctx context.Context, file *upload.File) (State, error) {
	return c.update(ctx, FileSelected{File: file})
}

func (c *Coordinator) ChangeMode(ctx context.Context, mode media.Mode) (State, error) {
	return c.update(ctx, ModeChanged{Mode: mode})
}

func (c *Coordinator) ChangeIdentity(ctx context.Context, name, email string) (State, error) {
	return c.update(ctx, IdentityChanged{
		Name:  null.NewString(strings.TrimSpace(name), strings.TrimSpace(name) != ""),
		Email: null.NewString(strings.TrimSpace(email), strings.TrimSpace(email) != ""),
	})
}

// Reject displays a validation message without changing the status.
func (c *Coordinator) Reject(ctx context.Context, message string) (State, error) {
	return c.update(ctx, Rejected{Message: message})
}

// Generate starts a generation for the selected file and mode.
// The returned Ref resolves to the final state and the resolution error, if any.
func (c *Coordinator) Generate(ctx context.Context) (syncf.Ref[State], error) {
	c.init()
	ctx, cancel := c.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	defer cancel()
	if c.closed {
		return nil, ErrClosed
	}

	if c.state.Status == InProgress {
		return nil, ErrInProgress
	}

	if err := c.validate(c.state); err != nil {
		c.apply(ctx, Rejected{Message: Message(err, c.Timeout)})
		return nil, err
	}

	state := c.apply(ctx, Submitted{})
	req := resolver.Request{
		File:     state.File.Data,
		FileName: state.File.Name,
		MIMEType: state.File.MIMEType,
		Prompt:   state.Mode.Prompt(),
		Mode:     state.Mode,
		Name:     state.Name,
		Email:    state.Email,
		Progress: func(stage resolver.Stage) {
			_, _ = c.update(nil, Progressed{Stage: stage})
		},
	}

	endpoint := c.Endpoints[state.Mode]
	logf.Get(c).Infof(ctx, "submitting %s generation for [%s] (%s)", req.Mode, req.FileName, state.File.Size())
	var result syncf.Var[State]
	if _, err := syncf.GoWith(c.ctx, c.work.Spawn, func(ctx context.Context) {
		state, err := c.resolve(ctx, endpoint, req)
		_ = result.Complete(nil, state, err)
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// resolve runs the generation. Only the webhook call is interrupted by Close.
func (c *Coordinator) resolve(ctx context.Context, endpoint string, req resolver.Request) (State, error) {
	ref, err := c.Resolver.Resolve(ctx, endpoint, req)
	if err != nil {
		state, _ := c.update(nil, ResolveFailed{Message: Message(err, c.Timeout)})
		return state, err
	}

	return c.update(nil, Resolved{Result: Result{
		Mode:      req.Mode,
		Ref:       ref,
		Prompt:    req.Prompt,
		CreatedAt: c.Clock.Now(),
	}})
}

// Close releases the displayed result and interrupts the running generation, if any.
func (c *Coordinator) Close() error {
	c.init()
	ctx, cancel := c.mu.Lock(nil)
	c.shutdown(ctx)
	cancel()
	c.work.Wait()
	return nil
}

// CloseIfIdle closes the session if nothing happened in it for longer than ttl
// and no generation is running. The check and the close are atomic.
// Close may be called afterwards to wait for the session to finish.
func (c *Coordinator) CloseIfIdle(ctx context.Context, now time.Time, ttl time.Duration) bool {
	c.init()
	ctx, cancel := c.mu.Lock(ctx)
	if ctx.Err() != nil {
		return false
	}

	defer cancel()
	if c.closed || c.state.Status == InProgress || now.Sub(c.lastActive) <= ttl {
		return false
	}

	c.shutdown(ctx)
	return true
}

// shutdown must be called with the lock held.
func (c *Coordinator) shutdown(ctx context.Context) {
	if !c.closed {
		c.closed = true
		if result := c.state.Result; result != nil {
			c.release(ctx, result.Ref)
		}

		c.state.Result = nil
	}

	c.cancel()
}

func (c *Coordinator) validate(state State) error {
	if state.File == nil {
		return resolver.Validation(MissingFileMessage)
	}

	if c.RequireIdentity && (strings.TrimSpace(state.Name.String) == "" || strings.TrimSpace(state.Email.String) == "") {
		return resolver.Validation(MissingIdentityMessage)
	}

	return nil
}

func (c *Coordinator) update(ctx context.Context, event Event) (State, error) {
	c.init()
	ctx, cancel := c.mu.Lock(ctx)
	if ctx.Err() != nil {
		return State{}, ctx.Err()
	}

	defer cancel()
	if c.closed {
		if event, ok := event.(Resolved); ok {
			c.release(ctx, event.Result.Ref)
		}

		return c.state, ErrClosed
	}

	return c.apply(ctx, event), nil
}

// apply must be called with the lock held.
func (c *Coordinator) apply(ctx context.Context, event Event) State {
	prev, next := c.state, c.state.Apply(event)
	if prev.Result != nil && (next.Result == nil || next.Result.Ref != prev.Result.Ref) {
		c.release(ctx, prev.Result.Ref)
	}

	if event, ok := event.(Resolved); ok && (next.Result == nil || next.Result.Ref != event.Result.Ref) {
		c.release(ctx, event.Result.Ref)
	}

	c.state = next
	c.lastActive = c.Clock.Now()
	if c.Listener != nil {
		c.Listener(next)
	}

	return next
}

func (c *Coordinator) release(ctx context.Context, ref media.Ref) {
	if !ref.Local || c.Releaser == nil {
		return
	}

	err := c.Releaser.Release(ctx, ref)
	logf.Get(c).Resultf(ctx, logf.Debug, logf.Warn, "release [%s]: %v", ref, err)
}

package session

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/me3x"
	"github.com/jfk9w-go/flu/syncf"
)

const ServiceID = "core.sessions"

// Registry keeps a Coordinator per browser session.
// Sessions idle for longer than TTL are closed by Expire.
type Registry struct {
	Clock   syncf.Clock
	TTL     time.Duration
	Metrics me3x.Registry
	New     func(id string) *Coordinator

	sessions map[string]*Coordinator
	stop     context.CancelFunc
	mu       syncf.RWMutex
}

func (r *Registry) String() string {
	return ServiceID
}

func (r *Registry) Get(ctx context.Context, id string) (*Coordinator, bool) {
	ctx, cancel := r.mu.RLock(ctx)
	if ctx.Err() != nil {
		return nil, false
	}

	defer cancel()
	session, ok := r.sessions[id]
	return session, ok
}

// GetOrCreate returns the session with the given ID.
// A new session with a new ID is created if there is no such session.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Coordinator, bool, error) {
	if session, ok := r.Get(ctx, id); ok {
		return session, false, nil
	}

	ctx, cancel := r.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	defer cancel()
	if r.sessions == nil {
		r.sessions = make(map[string]*Coordinator)
	}

	id = uuid.Must(uuid.NewV4()).String()
	session := r.New(id)
	r.sessions[id] = session
	r.gauge().Set(float64(len(r.sessions)))
	logf.Get(r).Debugf(ctx, "created session [%s]", id)
	return session, true, nil
}

// Expire closes idle sessions and returns the number of closed sessions.
func (r *Registry) Expire(ctx context.Context) int {
	expired := r.expire(ctx)
	for _, session := range expired {
		flu.CloseQuietly(session)
	}

	if len(expired) > 0 {
		logf.Get(r).Infof(ctx, "expired %d sessions", len(expired))
	}

	return len(expired)
}

func (r *Registry) expire(ctx context.Context) []*Coordinator {
	ctx, cancel := r.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil
	}

	defer cancel()
	var (
		now     = r.Clock.Now()
		expired []*Coordinator
	)

	for id, session := range r.sessions {
		if session.CloseIfIdle(ctx, now, r.TTL) {
			delete(r.sessions, id)
			expired = append(expired, session)
		}
	}

	r.gauge().Set(float64(len(r.sessions)))
	return expired
}

// Run calls Expire periodically until the context is canceled.
func (r *Registry) Run(ctx context.Context, every time.Duration) error {
	stop, err := syncf.Go(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Expire(ctx)
			}
		}
	})

	if err != nil {
		return err
	}

	r.stop = stop
	return nil
}

func (r *Registry) Close() error {
	if r.stop != nil {
		r.stop()
	}

	ctx, cancel := r.mu.Lock(nil)
	sessions := r.sessions
	r.sessions = nil
	cancel()

	for _, session := range sessions {
		flu.CloseQuietly(session)
	}

	logf.Get(r).Debugf(ctx, "closed %d sessions", len(sessions))
	return nil
}

func (r *Registry) gauge() me3x.Gauge {
	if r.Metrics == nil {
		return me3x.DummyRegistry{}.Gauge("active", nil)
	}

	return r.Metrics.Gauge("active", nil)
}

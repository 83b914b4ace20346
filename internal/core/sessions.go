package core

import (
	"context"
	"encoding/json"

	"github.com/jfk9w/fuqi/internal/core/internal/session"
	"github.com/jfk9w/fuqi/internal/core/internal/web"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/apfel"
	"github.com/jfk9w-go/flu/logf"
)

type SessionConfig struct {
	TTL        flu.Duration `yaml:"ttl,omitempty" doc:"Idle sessions are closed after this interval." default:"2h"`
	CleanEvery flu.Duration `yaml:"cleanEvery,omitempty" doc:"How often to look for idle sessions." default:"5m"`
}

type SessionContext interface {
	ResolverContext
	UploadContext
	SessionConfig() SessionConfig
}

// Sessions keeps per-browser generation state and broadcasts its changes.
type Sessions[C SessionContext] struct {
	*session.Registry
	Hub *web.Hub
}

func (s Sessions[C]) String() string {
	return session.ServiceID
}

func (s *Sessions[C]) Include(ctx context.Context, app apfel.MixinApp[C]) error {
	if s.Registry != nil {
		return nil
	}

	var resolver Resolver[C]
	if err := app.Use(ctx, &resolver, false); err != nil {
		return err
	}

	var blobs Blobs[C]
	if err := app.Use(ctx, &blobs, false); err != nil {
		return err
	}

	var metrics apfel.Prometheus[C]
	if err := app.Use(ctx, &metrics, false); err != nil {
		return err
	}

	var (
		config  = app.Config().SessionConfig()
		webhook = app.Config().ResolverConfig()
		hub     = new(web.Hub)
	)

	registry := &session.Registry{
		Clock:   app,
		TTL:     config.TTL.Value,
		Metrics: metrics.Registry().WithPrefix("app_sessions"),
		New: func(id string) *session.Coordinator {
			return &session.Coordinator{
				ID:              id,
				Clock:           app,
				Resolver:        resolver,
				Releaser:        blobs.Blobs,
				Endpoints:       webhook.Endpoints(),
				Timeout:         webhook.Timeout.Value,
				RequireIdentity: app.Config().UploadConfig().RequireIdentity,
				Listener: func(state session.State) {
					data, err := json.Marshal(web.NewView(state))
					if err != nil {
						logf.Get(hub).Warnf(context.Background(), "marshal state for [%s]: %v", id, err)
						return
					}

					hub.Publish(context.Background(), id, data)
				},
			}
		},
	}

	if err := app.Manage(ctx, registry); err != nil {
		return err
	}

	if err := registry.Run(ctx, config.CleanEvery.Value); err != nil {
		return err
	}

	s.Registry = registry
	s.Hub = hub
	return nil
}

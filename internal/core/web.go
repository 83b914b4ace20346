package core

import (
	"context"

	"github.com/jfk9w/fuqi/internal/core/internal/upload"
	"github.com/jfk9w/fuqi/internal/core/internal/web"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/apfel"
)

type WebConfig struct {
	Address     string       `yaml:"address,omitempty" doc:"HTTP listener address." default:":8080"`
	ReadTimeout flu.Duration `yaml:"readTimeout,omitempty" doc:"Maximum duration for reading a request, including an uploaded photo." default:"30s"`
}

type UploadConfig struct {
	MaxSize         media.Size `yaml:"maxSize,omitempty" doc:"Maximum size of an uploaded photo." pattern:"^(\\d+)([KMGT])?$" default:"20M"`
	RequireIdentity bool       `yaml:"requireIdentity,omitempty" doc:"Require name and email before generation." default:"true"`
}

type UploadContext interface {
	UploadConfig() UploadConfig
}

type WebContext interface {
	SessionContext
	WebConfig() WebConfig
}

// Web serves the generation page.
type Web[C WebContext] struct {
	server *web.Server
}

func (w Web[C]) String() string {
	return web.ServiceID
}

func (w *Web[C]) Include(ctx context.Context, app apfel.MixinApp[C]) error {
	if w.server != nil {
		return nil
	}

	var sessions Sessions[C]
	if err := app.Use(ctx, &sessions, false); err != nil {
		return err
	}

	var blobs Blobs[C]
	if err := app.Use(ctx, &blobs, false); err != nil {
		return err
	}

	var (
		config = app.Config().WebConfig()
		upl    = app.Config().UploadConfig()
	)

	handler := &web.Handler{
		Sessions:        sessions.Registry,
		Blobs:           blobs.Blobs,
		Upload:          upload.Reader{MaxSize: upl.MaxSize},
		Hub:             sessions.Hub,
		RequireIdentity: upl.RequireIdentity,
	}

	server := &web.Server{
		Address:     config.Address,
		ReadTimeout: config.ReadTimeout.Value,
		Handler:     handler.Router(),
	}

	if err := server.Start(ctx); err != nil {
		return err
	}

	if err := app.Manage(ctx, server); err != nil {
		return err
	}

	w.server = server
	return nil
}

package main

import (
	"context"

	"github.com/jfk9w/fuqi/internal/core"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/apfel"
	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/syncf"
)

type C struct {
	HTTP       core.WebConfig         `yaml:"http,omitempty" doc:"HTTP listener settings."`
	Webhooks   core.ResolverConfig    `yaml:"webhooks" doc:"Generation webhook settings."`
	Upload     core.UploadConfig      `yaml:"upload,omitempty" doc:"Photo upload settings."`
	Results    core.BlobConfig        `yaml:"results,omitempty" doc:"Generation result storage settings."`
	Sessions   core.SessionConfig     `yaml:"sessions,omitempty" doc:"Browser session settings."`
	Logging    apfel.LogfConfig       `yaml:"logging,omitempty" doc:"Logging settings."`
	Prometheus apfel.PrometheusConfig `yaml:"prometheus,omitempty" doc:"Prometheus settings."`
}

func (c C) LogfConfig() apfel.LogfConfig             { return c.Logging }
func (c C) PrometheusConfig() apfel.PrometheusConfig { return c.Prometheus }
func (c C) WebConfig() core.WebConfig                { return c.HTTP }
func (c C) ResolverConfig() core.ResolverConfig      { return c.Webhooks }
func (c C) UploadConfig() core.UploadConfig          { return c.Upload }
func (c C) BlobConfig() core.BlobConfig              { return c.Results }
func (c C) SessionConfig() core.SessionConfig        { return c.Sessions }

var GitCommit = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := apfel.Boot[C]{
		Name:    "fuqi",
		Version: GitCommit,
	}.App(ctx)
	defer flu.CloseQuietly(app)

	app.Uses(ctx,
		new(apfel.Logf[C]),
		new(apfel.Prometheus[C]),
		new(core.Blobs[C]),
		new(core.Resolver[C]),
		new(core.Sessions[C]),
		new(core.Web[C]),
	)

	logf.Infof(ctx, "started %s", GitCommit)
	syncf.AwaitSignal(ctx)
}

package core

import (
	"context"
	"net/http"

	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/apfel"
	"github.com/jfk9w-go/flu/httpf"
	"github.com/jfk9w-go/flu/logf"
)

type ResolverConfig struct {
	Image         string       `yaml:"image" doc:"Webhook URL for image generation." example:"https://n8n.example.com/webhook/cny-image"`
	Video         string       `yaml:"video" doc:"Webhook URL for video generation." example:"https://n8n.example.com/webhook/cny-generation"`
	Timeout       flu.Duration `yaml:"timeout,omitempty" doc:"Deadline for a single generation request, including reading the response." default:"3m"`
	CandidateKeys []string     `yaml:"candidateKeys,omitempty" doc:"JSON keys which may hold the result URL, in order of preference."`
}

func (c ResolverConfig) Endpoints() map[media.Mode]string {
	return map[media.Mode]string{
		media.Image: c.Image,
		media.Video: c.Video,
	}
}

type ResolverContext interface {
	apfel.PrometheusContext
	BlobContext
	ResolverConfig() ResolverConfig
}

// Resolver submits photos to the generation webhooks.
type Resolver[C ResolverContext] struct {
	*resolver.Client
}

func (r Resolver[C]) String() string {
	return resolver.ServiceID
}

func (r *Resolver[C]) Include(ctx context.Context, app apfel.MixinApp[C]) error {
	if r.Client != nil {
		return nil
	}

	var blobs Blobs[C]
	if err := app.Use(ctx, &blobs, false); err != nil {
		return err
	}

	var metrics apfel.Prometheus[C]
	if err := app.Use(ctx, &metrics, false); err != nil {
		return err
	}

	config := app.Config().ResolverConfig()
	for mode, endpoint := range config.Endpoints() {
		if endpoint == "" {
			logf.Get(r).Warnf(ctx, "%s webhook is not configured", mode)
		}
	}

	r.Client = &resolver.Client{
		HttpClient:    &client{client: &http.Client{Transport: httpf.NewDefaultTransport()}},
		Blobs:         blobs.Blobs,
		Metrics:       metrics.Registry().WithPrefix("app_resolver"),
		Clock:         app,
		Timeout:       config.Timeout.Value,
		Fields:        resolver.FormFieldsV1,
		CandidateKeys: config.CandidateKeys,
		MaxResultSize: app.Config().BlobConfig().MaxSize,
	}

	return nil
}

type client struct {
	client httpf.Client
}

func (c *client) String() string {
	return resolver.ServiceID + ".http"
}

func (c *client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	logf.Get(c).Resultf(req.Context(), logf.Trace, logf.Warn, "%s => %v", &httpf.RequestBuilder{Request: req}, err)
	return resp, err
}

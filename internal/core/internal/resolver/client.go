package resolver

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/httpf"
	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/me3x"
	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
	"golang.org/x/exp/utf8string"
	"gopkg.in/guregu/null.v3"
)

const (
	ServiceID = "core.resolver"

	DefaultTimeout       = 3 * time.Minute
	DefaultMaxResultSize = 256 * media.MB

	maxErrorBodySize = 64 << 10
	promptPreviewLen = 50
)

var durationBuckets = []float64{1, 5, 15, 30, 60, 90, 120, 180, 240}

// Request is built fresh for every submission.
type Request struct {
	File     []byte
	FileName string
	MIMEType string
	Prompt   string
	Mode     media.Mode
	Name     null.String
	Email    null.String
	Progress func(stage Stage)
}

func (r Request) progress(stage Stage) {
	if r.Progress != nil {
		r.Progress(stage)
	}
}

// Client submits generation requests to a webhook and resolves responses to media refs.
type Client struct {
	HttpClient    httpf.Client
	Blobs         media.Materializer
	Metrics       me3x.Registry
	Clock         syncf.Clock
	Timeout       time.Duration
	Fields        FormFields
	CandidateKeys []string
	MaxResultSize media.Size
}

func (c *Client) String() string {
	return ServiceID
}

// Resolve makes a single multipart request to endpoint and negotiates the response.
// The whole exchange, including reading the response body, is bounded by Timeout.
func (c *Client) Resolve(ctx context.Context, endpoint string, req Request) (ref media.Ref, err error) {
	start := c.now()
	defer func() {
		c.observe(req.Mode, start, err)
		logf.Get(c).Resultf(ctx, logf.Info, logf.Warn, "resolve %s [%s] via %s: %v",
			req.Mode, preview(req.Prompt), endpoint, err)
	}()

	switch {
	case endpoint == "":
		return ref, newError(KindConfiguration, "no webhook endpoint configured for mode %s", req.Mode)
	case len(req.File) == 0:
		return ref, Validation("file is empty")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := c.Fields
	if fields == (FormFields{}) {
		fields = FormFieldsV1
	}

	payload := &progressInput{
		Input: flu.Bytes(req.File),
		done:  func() { req.progress(StageGenerating) },
	}

	body := newForm().
		File(fields.Payload, req.FileName, req.MIMEType, payload).
		Set(fields.FileName, req.FileName).
		Set(fields.Prompt, req.Prompt).
		Set(fields.Mode, req.Mode.String()).
		Set(fields.Name, req.Name.String).
		Set(fields.Email, req.Email.String)

	req.progress(StageUploading)
	err = httpf.POST(endpoint, body).
		Exchange(ctx, c.HttpClient).
		HandleFunc(func(resp *http.Response) error {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
				return &Error{Kind: KindHTTP, StatusCode: resp.StatusCode, Body: string(data)}
			}

			var err error
			ref, err = c.negotiate(ctx, resp)
			return err
		}).
		Error()

	if err != nil {
		return media.Ref{}, classify(ctx, err)
	}

	return ref, nil
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}

	return syncf.DefaultClock.Now()
}

func (c *Client) metrics() me3x.Registry {
	if c.Metrics != nil {
		return c.Metrics
	}

	return me3x.DummyRegistry{}
}

func (c *Client) observe(mode media.Mode, start time.Time, err error) {
	labels := me3x.Labels{}.
		Add("mode", mode).
		Add("result", KindOf(err))

	metrics := c.metrics()
	metrics.Counter("calls", labels).Inc()
	metrics.Histogram("duration_seconds", labels, durationBuckets).Observe(c.now().Sub(start).Seconds())
}

func classify(ctx context.Context, err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	default:
		return &Error{Kind: KindTransport, Err: err}
	}
}

func preview(prompt string) string {
	str := utf8string.NewString(prompt)
	if str.RuneCount() > promptPreviewLen {
		return str.Slice(0, promptPreviewLen) + "…"
	}

	return prompt
}

// progressInput calls done once the wrapped input has been fully read.
type progressInput struct {
	flu.Input
	done func()
	once sync.Once
}

func (i *progressInput) Reader() (io.Reader, error) {
	reader, err := i.Input.Reader()
	if err != nil {
		return nil, err
	}

	return &progressReader{Reader: reader, input: i}, nil
}

type progressReader struct {
	io.Reader
	input *progressInput
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		r.input.once.Do(r.input.done)
	}

	return n, err
}

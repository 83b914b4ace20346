package resolver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type materializer struct {
	mu       sync.Mutex
	calls    int
	mimeType string
	data     []byte
}

func (m *materializer) Materialize(ctx context.Context, mimeType string, data []byte) (media.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.mimeType = mimeType
	m.data = data
	return media.Ref{URL: "/media/blob", Local: true}, nil
}

func serve(t *testing.T, handler http.HandlerFunc) string {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func respond(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}

		_, _ = io.WriteString(w, body)
	}
}

func newRequest() resolver.Request {
	return resolver.Request{
		File:     []byte("photo bytes"),
		FileName: "me.jpg",
		MIMEType: "image/jpeg",
		Prompt:   media.ImagePrompt,
		Mode:     media.Image,
		Name:     null.StringFrom("Li Wei"),
	}
}

func TestClient_RequestConstruction(t *testing.T) {
	var (
		ctx      = context.Background()
		blobs    = new(materializer)
		client   = &resolver.Client{Blobs: blobs}
		form     map[string]string
		payload  []byte
		name     string
		partType string
	)

	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.Nil(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		form = make(map[string]string)
		for key, values := range r.MultipartForm.Value {
			form[key] = values[0]
		}

		file, header, err := r.FormFile("data")
		if !assert.Nil(t, err) {
			return
		}

		defer file.Close()
		name = header.Filename
		partType = header.Header.Get("Content-Type")
		payload, _ = io.ReadAll(file)
		_, _ = io.WriteString(w, "https://cdn.example.com/result.png")
	})

	ref, err := client.Resolve(ctx, url, newRequest())
	assert.Nil(t, err)
	assert.Equal(t, media.Ref{URL: "https://cdn.example.com/result.png"}, ref)
	assert.Equal(t, "me.jpg", name)
	assert.Equal(t, "image/jpeg", partType)
	assert.Equal(t, []byte("photo bytes"), payload)
	assert.Equal(t, map[string]string{
		"fileName": "me.jpg",
		"prompt":   media.ImagePrompt,
		"mode":     "image",
		"name":     "Li Wei",
		"email":    "",
	}, form)
	assert.Equal(t, 0, blobs.calls)
}

func TestClient_Binary(t *testing.T) {
	ctx := context.Background()

	t.Run("image content type", func(t *testing.T) {
		blobs := new(materializer)
		client := &resolver.Client{Blobs: blobs}
		url := serve(t, respond("image/png", string(pngHeader)))
		ref, err := client.Resolve(ctx, url, newRequest())
		assert.Nil(t, err)
		assert.Equal(t, media.Ref{URL: "/media/blob", Local: true}, ref)
		assert.Equal(t, "image/png", blobs.mimeType)
		assert.Equal(t, pngHeader, blobs.data)
	})

	t.Run("video content type", func(t *testing.T) {
		blobs := new(materializer)
		client := &resolver.Client{Blobs: blobs}
		url := serve(t, respond("video/mp4; codecs=avc1", "not really mp4"))
		ref, err := client.Resolve(ctx, url, newRequest())
		assert.Nil(t, err)
		assert.True(t, ref.Local)
		assert.Equal(t, "video/mp4", blobs.mimeType)
	})

	t.Run("sniffed octet stream", func(t *testing.T) {
		blobs := new(materializer)
		client := &resolver.Client{Blobs: blobs}
		url := serve(t, respond("application/octet-stream", string(pngHeader)))
		ref, err := client.Resolve(ctx, url, newRequest())
		assert.Nil(t, err)
		assert.True(t, ref.Local)
		assert.Equal(t, "image/png", blobs.mimeType)
	})

	t.Run("empty body", func(t *testing.T) {
		blobs := new(materializer)
		client := &resolver.Client{Blobs: blobs}
		url := serve(t, respond("image/jpeg", ""))
		_, err := client.Resolve(ctx, url, newRequest())
		assert.Equal(t, resolver.KindUnexpectedFormat, resolver.KindOf(err))
		assert.Equal(t, 0, blobs.calls)
	})

	t.Run("too large", func(t *testing.T) {
		blobs := new(materializer)
		client := &resolver.Client{Blobs: blobs, MaxResultSize: 4}
		url := serve(t, respond("image/png", string(pngHeader)))
		_, err := client.Resolve(ctx, url, newRequest())
		assert.Equal(t, resolver.KindUnexpectedFormat, resolver.KindOf(err))
		assert.Equal(t, 0, blobs.calls)
	})
}

func TestClient_JSON(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name        string
		contentType string
		body        string
		url         string
		kind        resolver.Kind
	}{
		{
			name:        "candidate key order",
			contentType: "application/json",
			body:        `{"result": "https://example.com/result", "url": "https://example.com/url"}`,
			url:         "https://example.com/url",
		},
		{
			name:        "empty values are skipped",
			contentType: "application/json",
			body:        `{"url": "", "output": 5, "image": "https://example.com/image"}`,
			url:         "https://example.com/image",
		},
		{
			name:        "nested in document order",
			contentType: "application/json; charset=utf-8",
			body:        `{"meta": {"id": 1}, "a": {"video": "https://example.com/a"}, "b": {"url": "https://example.com/b"}}`,
			url:         "https://example.com/a",
		},
		{
			name:        "top level wins over nested",
			contentType: "application/json",
			body:        `{"data": {"url": "https://example.com/nested"}, "fileUrl": "https://example.com/top"}`,
			url:         "https://example.com/top",
		},
		{
			name:        "top level array",
			contentType: "application/json",
			body:        `[{"id": 1}, {"downloadUrl": "https://example.com/array"}]`,
			url:         "https://example.com/array",
		},
		{
			name:        "json suffix",
			contentType: "application/vnd.result+json",
			body:        `{"imageUrl": "https://example.com/suffix"}`,
			url:         "https://example.com/suffix",
		},
		{
			name:        "untyped json body",
			contentType: "text/plain",
			body:        "  {\"videoUrl\": \"https://example.com/text\"}\n",
			url:         "https://example.com/text",
		},
		{
			name:        "processing status",
			contentType: "application/json",
			body:        `{"status": "processing", "url": "https://example.com/ignored"}`,
			kind:        resolver.KindConfiguration,
		},
		{
			name:        "status is matched exactly",
			contentType: "application/json",
			body:        `{"status": "Processing", "url": "https://example.com/done"}`,
			url:         "https://example.com/done",
		},
		{
			name:        "too deep",
			contentType: "application/json",
			body:        `{"data": {"inner": {"url": "https://example.com/deep"}}}`,
			kind:        resolver.KindMalformedResponse,
		},
		{
			name:        "nested array is not searched",
			contentType: "application/json",
			body:        `{"items": [{"url": "https://example.com/deep"}]}`,
			kind:        resolver.KindMalformedResponse,
		},
		{
			name:        "invalid json",
			contentType: "application/json",
			body:        `{"url": `,
			kind:        resolver.KindMalformedResponse,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := &resolver.Client{Blobs: new(materializer)}
			url := serve(t, respond(tc.contentType, tc.body))
			ref, err := client.Resolve(ctx, url, newRequest())
			if tc.kind != 0 {
				assert.Equal(t, tc.kind, resolver.KindOf(err))
				assert.True(t, ref.IsEmpty())
				return
			}

			assert.Nil(t, err)
			assert.Equal(t, media.Ref{URL: tc.url}, ref)
		})
	}
}

func TestClient_CustomCandidateKeys(t *testing.T) {
	client := &resolver.Client{CandidateKeys: []string{"link"}}
	url := serve(t, respond("application/json", `{"url": "https://example.com/url", "link": "https://example.com/link"}`))
	ref, err := client.Resolve(context.Background(), url, newRequest())
	assert.Nil(t, err)
	assert.Equal(t, "https://example.com/link", ref.URL)
}

func TestClient_Text(t *testing.T) {
	ctx := context.Background()
	client := &resolver.Client{Blobs: new(materializer)}

	url := serve(t, respond("text/plain", "\n  https://example.com/video.mp4  \n"))
	ref, err := client.Resolve(ctx, url, newRequest())
	assert.Nil(t, err)
	assert.Equal(t, media.Ref{URL: "https://example.com/video.mp4"}, ref)

	url = serve(t, respond("text/html", "<html>Workflow started</html>"))
	_, err = client.Resolve(ctx, url, newRequest())
	assert.Equal(t, resolver.KindUnexpectedFormat, resolver.KindOf(err))

	url = serve(t, respond("text/plain", "ftp://example.com/file"))
	_, err = client.Resolve(ctx, url, newRequest())
	assert.Equal(t, resolver.KindUnexpectedFormat, resolver.KindOf(err))
}

func TestClient_HTTPError(t *testing.T) {
	blobs := new(materializer)
	client := &resolver.Client{Blobs: blobs}
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(pngHeader)
	})

	_, err := client.Resolve(context.Background(), url, newRequest())
	var e *resolver.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, resolver.KindHTTP, e.Kind)
	assert.Equal(t, http.StatusBadGateway, e.StatusCode)
	assert.Equal(t, string(pngHeader), e.Body)
	assert.Equal(t, "webhook call failed with status: 502", e.Error())
	assert.Equal(t, 0, blobs.calls)
}

func TestClient_Timeout(t *testing.T) {
	client := &resolver.Client{Timeout: 50 * time.Millisecond}
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	_, err := client.Resolve(context.Background(), url, newRequest())
	assert.Equal(t, resolver.KindTimeout, resolver.KindOf(err))
	assert.True(t, time.Since(start) < 5*time.Second)
}

func TestClient_Transport(t *testing.T) {
	server := httptest.NewServer(respond("text/plain", "https://example.com"))
	url := server.URL
	server.Close()

	client := &resolver.Client{}
	_, err := client.Resolve(context.Background(), url, newRequest())
	assert.Equal(t, resolver.KindTransport, resolver.KindOf(err))
}

func TestClient_Validation(t *testing.T) {
	var calls int
	url := serve(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
	client := &resolver.Client{}

	req := newRequest()
	req.File = nil
	_, err := client.Resolve(context.Background(), url, req)
	assert.Equal(t, resolver.KindValidation, resolver.KindOf(err))

	_, err = client.Resolve(context.Background(), "", newRequest())
	assert.Equal(t, resolver.KindConfiguration, resolver.KindOf(err))
	assert.Equal(t, 0, calls)
}

func TestClient_Progress(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []resolver.Stage
	)

	req := newRequest()
	req.Progress = func(stage resolver.Stage) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, stage)
	}

	client := &resolver.Client{}
	url := serve(t, respond("text/plain", "https://example.com/result.png"))
	_, err := client.Resolve(context.Background(), url, req)
	assert.Nil(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []resolver.Stage{resolver.StageUploading, resolver.StageGenerating}, stages)
}

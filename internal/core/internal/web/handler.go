package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/blobs"
	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/core/internal/session"
	"github.com/jfk9w/fuqi/internal/core/internal/upload"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/gorilla/mux"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/logf"
	"github.com/pkg/errors"
)

const (
	ServiceID  = "core.web"
	CookieName = "fuqi_session"

	formOverhead = 1 << 20
)

type BlobStorage interface {
	Open(ctx context.Context, id string) (*media.Blob, error)
}

// Handler serves the page and its form endpoints.
// Requests accepting JSON get the session state back,
// plain form submissions are redirected to the page.
type Handler struct {
	Sessions        *session.Registry
	Blobs           BlobStorage
	Upload          upload.Reader
	Hub             *Hub
	RequireIdentity bool
}

func (h *Handler) String() string {
	return ServiceID
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)
	r.HandleFunc("/", h.HandleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", h.HandleUpload).Methods(http.MethodPost)
	r.HandleFunc("/mode", h.HandleMode).Methods(http.MethodPost)
	r.HandleFunc("/identity", h.HandleIdentity).Methods(http.MethodPost)
	r.HandleFunc("/generate", h.HandleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/state", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/events", h.HandleEvents).Methods(http.MethodGet)
	r.HandleFunc(blobs.URLPrefix+"{id}", h.HandleMedia).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	return r
}

func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	state, err := c.State(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, newPageData(state, h.RequireIdentity)); err != nil {
		logf.Get(h).Errorf(r.Context(), "render page: %v", err)
	}
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	maxSize := h.Upload.MaxSize
	if maxSize <= 0 {
		maxSize = upload.DefaultMaxSize
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize.Bytes()+formOverhead)
	if err := r.ParseMultipartForm(maxSize.Bytes()); err != nil {
		h.reject(w, r, c, fmt.Sprintf("文件过大或无法读取 (Upload failed, max %s)", maxSize))
		return
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()
	headers := r.MultipartForm.File["photo"]
	if len(headers) == 0 {
		h.reject(w, r, c, session.MissingFileMessage)
		return
	}

	file, err := h.Upload.Read(ctx, headers[0], upload.ParseSource(r.FormValue("source")))
	if err != nil {
		logf.Get(h).Warnf(ctx, "read upload [%s]: %v", headers[0].Filename, err)
		h.reject(w, r, c, uploadMessage(err, maxSize))
		return
	}

	state, err := c.SelectFile(ctx, file)
	h.respond(w, r, state, err, http.StatusOK)
}

func (h *Handler) HandleMode(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	mode, err := media.ParseMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := c.ChangeMode(r.Context(), mode)
	h.respond(w, r, state, err, http.StatusOK)
}

func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	state, err := c.ChangeIdentity(r.Context(), r.FormValue("name"), r.FormValue("email"))
	h.respond(w, r, state, err, http.StatusOK)
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if r.FormValue("name") != "" || r.FormValue("email") != "" {
		if _, err := c.ChangeIdentity(ctx, r.FormValue("name"), r.FormValue("email")); err != nil {
			h.respond(w, r, session.State{}, err, 0)
			return
		}
	}

	_, err := c.Generate(ctx)
	status := http.StatusAccepted
	switch {
	case errors.Is(err, session.ErrInProgress):
		status, err = http.StatusConflict, nil
	case resolver.KindOf(err) == resolver.KindValidation:
		status, err = http.StatusBadRequest, nil
	}

	state, stateErr := c.State(ctx)
	if err == nil {
		err = stateErr
	}

	h.respond(w, r, state, err, status)
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	state, err := c.State(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, NewView(state))
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	messages, unsubscribe := h.Hub.Subscribe(ctx, c.ID)
	defer unsubscribe()

	state, err := c.State(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = fmt.Fprint(w, ": connected\n\n")
	if data, err := json.Marshal(NewView(state)); err == nil {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	}

	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-messages:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// HandleMedia serves the blob which is currently displayed in the session.
func (h *Handler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	id := mux.Vars(r)["id"]
	state, err := c.State(ctx)
	if err != nil || state.Result == nil || state.Result.Ref.URL != blobs.URLPrefix+id {
		http.NotFound(w, r)
		return
	}

	blob, err := h.Blobs.Open(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size.Bytes(), 10))
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, state.Result.DownloadName()))
	}

	if _, err := flu.Copy(blob.Input, flu.IO{W: w}); err != nil {
		logf.Get(h).Warnf(ctx, "serve blob [%s]: %v", id, err)
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Coordinator, bool) {
	var id string
	if cookie, err := r.Cookie(CookieName); err == nil {
		id = cookie.Value
	}

	c, created, err := h.Sessions.GetOrCreate(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, false
	}

	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    c.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return c, true
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, c *session.Coordinator, message string) {
	state, err := c.Reject(r.Context(), message)
	h.respond(w, r, state, err, http.StatusBadRequest)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, state session.State, err error, status int) {
	switch {
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case acceptsJSON(r):
		writeJSON(w, status, NewView(state))
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logf.Get(h).Tracef(r.Context(), "%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func uploadMessage(err error, maxSize media.Size) string {
	switch {
	case errors.Is(err, upload.ErrNotImage):
		return "请上传图片文件 (Please drop an image file)"
	case errors.Is(err, upload.ErrTooLarge):
		return fmt.Sprintf("文件过大 (File is too large, max %s)", maxSize)
	case errors.Is(err, upload.ErrEmpty):
		return session.MissingFileMessage
	default:
		return "无法读取文件 (Could not read the file)"
	}
}

func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = flu.EncodeTo(flu.JSON(value), flu.IO{W: w})
}

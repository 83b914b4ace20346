package blobs

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jfk9w/fuqi/internal/media"

	"github.com/gofrs/uuid"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
)

const (
	ServiceID = "core.blobs"
	URLPrefix = "/media/"
)

var ErrNotFound = errors.New("blob not found")

type file struct {
	path      flu.File
	mimeType  string
	size      media.Size
	createdAt time.Time
}

// Files keeps materialized results in a temporary directory.
// Every blob is addressed by a URLPrefix-based ref until it is released.
// Blobs which outlive TTL are removed on next allocation.
type Files struct {
	Clock syncf.Clock
	Dir   string
	TTL   time.Duration
	files map[string]file
	mu    syncf.RWMutex
}

func (fs *Files) String() string {
	return ServiceID
}

func (fs *Files) Materialize(ctx context.Context, mimeType string, data []byte) (media.Ref, error) {
	ctx, cancel := fs.mu.Lock(ctx)
	if ctx.Err() != nil {
		return media.Ref{}, ctx.Err()
	}

	defer cancel()

	now := fs.Clock.Now()
	fs.expire(ctx, now)

	id := uuid.Must(uuid.NewV4()).String()
	path := flu.File(fs.Dir).Join(id)
	if _, err := flu.Copy(flu.Bytes(data), path); err != nil {
		_ = path.Remove()
		return media.Ref{}, errors.Wrapf(err, "write blob %s", id)
	}

	if fs.files == nil {
		fs.files = make(map[string]file)
	}

	fs.files[id] = file{
		path:      path,
		mimeType:  mimeType,
		size:      media.Size(len(data)),
		createdAt: now,
	}

	logf.Get(fs).Debugf(ctx, "stored %s blob [%s] (%s)", mimeType, id, media.Size(len(data)))
	return media.Ref{URL: URLPrefix + id, Local: true}, nil
}

func (fs *Files) Release(ctx context.Context, ref media.Ref) error {
	if !ref.Local {
		return nil
	}

	id := strings.TrimPrefix(ref.URL, URLPrefix)
	ctx, cancel := fs.mu.Lock(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer cancel()

	file, ok := fs.files[id]
	if !ok {
		return ErrNotFound
	}

	delete(fs.files, id)
	err := file.path.Remove()
	logf.Get(fs).Resultf(ctx, logf.Debug, logf.Warn, "release blob [%s]: %v", id, err)
	return err
}

func (fs *Files) Open(ctx context.Context, id string) (*media.Blob, error) {
	ctx, cancel := fs.mu.RLock(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	defer cancel()

	file, ok := fs.files[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &media.Blob{
		MIMEType: file.mimeType,
		Size:     file.size,
		Input:    file.path,
	}, nil
}

// Len returns the number of blobs which have not been released yet.
func (fs *Files) Len(ctx context.Context) int {
	ctx, cancel := fs.mu.RLock(ctx)
	if ctx.Err() != nil {
		return 0
	}

	defer cancel()
	return len(fs.files)
}

func (fs *Files) expire(ctx context.Context, now time.Time) {
	if fs.TTL <= 0 {
		return
	}

	for id, file := range fs.files {
		if now.Sub(file.createdAt) > fs.TTL {
			delete(fs.files, id)
			err := file.path.Remove()
			logf.Get(fs).Resultf(ctx, logf.Debug, logf.Warn, "expire blob [%s]: %v", id, err)
		}
	}
}

func (fs *Files) Close() error {
	return os.RemoveAll(fs.Dir)
}

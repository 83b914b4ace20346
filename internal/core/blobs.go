package core

import (
	"context"
	"os"

	"github.com/jfk9w/fuqi/internal/core/internal/blobs"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/apfel"
	"github.com/pkg/errors"
)

type BlobConfig struct {
	MaxSize media.Size   `yaml:"maxSize,omitempty" doc:"Maximum size of a binary generation result." pattern:"^(\\d+)([KMGT])?$" default:"256M"`
	TTL     flu.Duration `yaml:"ttl,omitempty" doc:"How long to keep results which were not released by their session." default:"6h"`
}

type BlobContext interface {
	BlobConfig() BlobConfig
}

// Blobs stores binary generation results in a temporary directory.
type Blobs[C BlobContext] struct {
	media.Blobs
}

func (b Blobs[C]) String() string {
	return blobs.ServiceID
}

func (b *Blobs[C]) Include(ctx context.Context, app apfel.MixinApp[C]) error {
	if b.Blobs != nil {
		return nil
	}

	dir, err := os.MkdirTemp(os.TempDir(), "fuqi-")
	if err != nil {
		return errors.Wrapf(err, "create temporary directory")
	}

	config := app.Config().BlobConfig()
	files := &blobs.Files{
		Clock: app,
		Dir:   dir,
		TTL:   config.TTL.Value,
	}

	if err := app.Manage(ctx, files); err != nil {
		return err
	}

	b.Blobs = files
	return nil
}

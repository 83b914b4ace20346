package media

import (
	"context"

	"github.com/jfk9w-go/flu"
)

// Blob is a stored binary result.
type Blob struct {
	MIMEType string
	Size     Size
	Input    flu.Input
}

// Materializer stores raw bytes locally and returns a displayable Ref.
type Materializer interface {
	Materialize(ctx context.Context, mimeType string, data []byte) (Ref, error)
}

// Releaser disposes of local Refs. Releasing a remote Ref is a no-op.
type Releaser interface {
	Release(ctx context.Context, ref Ref) error
}

type Blobs interface {
	Materializer
	Releaser
	Open(ctx context.Context, id string) (*Blob, error)
}

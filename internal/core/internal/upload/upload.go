package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jfk9w/fuqi/internal/media"

	"github.com/corona10/goimagehash"
	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/logf"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

const DefaultMaxSize = 20 * media.MB

// Source tells how the file was selected.
type Source string

const (
	Browse Source = "browse"
	Drop   Source = "drop"
)

func ParseSource(value string) Source {
	if Source(value) == Drop {
		return Drop
	}

	return Browse
}

var (
	ErrNotImage = errors.New("only image files can be dropped")
	ErrTooLarge = errors.New("file is too large")
	ErrEmpty    = errors.New("file is empty")
)

type readImageFunc func(io.Reader) (image.Image, error)

var imageTypes = map[string]readImageFunc{
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/gif":  gif.Decode,
	"image/bmp":  bmp.Decode,
	"image/webp": webp.Decode,
}

// File is a selected photo.
type File struct {
	Data     []byte
	Name     string
	MIMEType string
	Preview  string
	Hash     string
}

func (f *File) Size() media.Size {
	return media.Size(len(f.Data))
}

type Reader struct {
	MaxSize media.Size
}

func (r Reader) String() string {
	return "core.upload"
}

// Read loads a file from a multipart form.
func (r Reader) Read(ctx context.Context, header *multipart.FileHeader, source Source) (*File, error) {
	if max := r.maxSize(); header.Size > max.Bytes() {
		return nil, errors.Wrapf(ErrTooLarge, "%s exceeds %s", media.Size(header.Size), max)
	}

	input := multipartFile{header}
	return r.Load(ctx, input, header.Filename, header.Header.Get("Content-Type"), source)
}

// Load reads the file contents and builds its preview.
// Dropped files are accepted only if they are images.
func (r Reader) Load(ctx context.Context, input flu.Input, name, contentType string, source Source) (*File, error) {
	reader, err := input.Reader()
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}

	defer flu.CloseQuietly(reader)
	max := r.maxSize()
	data, err := io.ReadAll(io.LimitReader(reader, max.Bytes()+1))
	switch {
	case err != nil:
		return nil, errors.Wrap(err, "read file")
	case len(data) == 0:
		return nil, ErrEmpty
	case media.Size(len(data)) > max:
		return nil, errors.Wrapf(ErrTooLarge, "%s exceeds %s", name, max)
	}

	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}

	if source == Drop && !strings.HasPrefix(mimeType, "image/") {
		return nil, errors.Wrapf(ErrNotImage, "%s is %s", name, mimeType)
	}

	file := &File{
		Data:     data,
		Name:     name,
		MIMEType: mimeType,
		Preview:  fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
	}

	if readImage, ok := imageTypes[mimeType]; ok {
		file.Hash, err = hashImage(data, readImage)
		logf.Get(r).Resultf(ctx, logf.Debug, logf.Warn, "hash [%s] (%s, %s): %v", name, mimeType, file.Size(), err)
	}

	return file, nil
}

func (r Reader) maxSize() media.Size {
	if r.MaxSize > 0 {
		return r.MaxSize
	}

	return DefaultMaxSize
}

func hashImage(data []byte, readImage readImageFunc) (string, error) {
	img, err := readImage(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "read image")
	}

	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", errors.Wrap(err, "get diff hash")
	}

	return fmt.Sprintf("%x", dhash.GetHash()), nil
}

type multipartFile struct {
	header *multipart.FileHeader
}

func (f multipartFile) Reader() (io.Reader, error) {
	return f.header.Open()
}

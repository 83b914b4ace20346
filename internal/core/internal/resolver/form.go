package resolver

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formField struct {
	name, value string
}

// form is a multipart request body whose file part keeps its content type.
// Values are written in the order they were set, after the file.
type form struct {
	boundary string
	values   []formField
	field    string
	filename string
	mimeType string
	file     flu.Input
}

func newForm() *form {
	return &form{boundary: multipart.NewWriter(io.Discard).Boundary()}
}

func (f *form) Set(name, value string) *form {
	f.values = append(f.values, formField{name, value})
	return f
}

func (f *form) File(field, filename, mimeType string, input flu.Input) *form {
	f.field, f.filename, f.mimeType, f.file = field, filename, mimeType, input
	return f
}

func (f *form) ContentType() string {
	return "multipart/form-data; boundary=" + f.boundary
}

func (f *form) EncodeTo(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(f.boundary); err != nil {
		return errors.Wrap(err, "set boundary")
	}

	if f.file != nil {
		mimeType := f.mimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.field), quoteEscaper.Replace(f.filename)))
		header.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return errors.Wrapf(err, "create part %s", f.field)
		}

		if _, err := flu.Copy(f.file, flu.IO{W: part}); err != nil {
			return errors.Wrapf(err, "write part %s (%s)", f.field, f.filename)
		}
	}

	for _, value := range f.values {
		if err := mw.WriteField(value.name, value.value); err != nil {
			return errors.Wrapf(err, "write field %s", value.name)
		}
	}

	return errors.Wrap(mw.Close(), "close multipart writer")
}

package resolver

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/jfk9w/fuqi/internal/media"

	"github.com/jfk9w-go/flu/logf"
)

func (c *Client) negotiate(ctx context.Context, resp *http.Response) (media.Ref, error) {
	maxSize := c.MaxResultSize
	if maxSize <= 0 {
		maxSize = DefaultMaxResultSize
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize.Bytes()+1))
	if err != nil {
		return media.Ref{}, err
	}

	if media.Size(len(body)) > maxSize {
		return media.Ref{}, newError(KindUnexpectedFormat, "response body exceeds %s", maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := parseMIMEType(contentType, body)
	logf.Get(c).Debugf(ctx, "received %d bytes of %s (content type: %s)", len(body), mimeType, contentType)

	switch {
	case isBinary(mimeType):
		if len(body) == 0 {
			return media.Ref{}, newError(KindUnexpectedFormat, "empty %s body", mimeType)
		}

		if c.Blobs == nil {
			return media.Ref{}, newError(KindConfiguration, "no blob storage for %s results", mimeType)
		}

		return c.Blobs.Materialize(ctx, mimeType, body)

	case isJSON(mimeType):
		value, err := decodeJSON(body)
		if err != nil {
			return media.Ref{}, &Error{Kind: KindMalformedResponse, Err: err}
		}

		return c.findURL(value)
	}

	text := bytes.TrimSpace(body)
	if len(text) > 0 && (text[0] == '{' || text[0] == '[') {
		if value, err := decodeJSON(text); err == nil {
			return c.findURL(value)
		}
	}

	if url := string(text); strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return media.Ref{URL: url}, nil
	}

	return media.Ref{}, newError(KindUnexpectedFormat, "unexpected %s response", mimeType)
}

func (c *Client) findURL(value any) (media.Ref, error) {
	keys := c.CandidateKeys
	if len(keys) == 0 {
		keys = DefaultCandidateKeys
	}

	url, err := findURL(value, keys)
	if err != nil {
		return media.Ref{}, err
	}

	return media.Ref{URL: url}, nil
}

// parseMIMEType extracts the media type from the header.
// Untyped and octet-stream bodies are sniffed for images and videos.
func parseMIMEType(contentType string, body []byte) string {
	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mimeType = ""
	}

	mimeType = strings.ToLower(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(body))
		if isBinary(sniffed) {
			return sniffed
		}
	}

	return mimeType
}

func isBinary(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

func isJSON(mimeType string) bool {
	return mimeType == "application/json" || strings.HasSuffix(mimeType, "+json")
}

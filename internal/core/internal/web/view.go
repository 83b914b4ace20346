package web

import (
	"html/template"
	"strings"

	"github.com/jfk9w/fuqi/internal/core/internal/session"
	"github.com/jfk9w/fuqi/internal/media"
)

type View struct {
	session.State
	FileName     string `json:"fileName,omitempty"`
	Loading      string `json:"loading,omitempty"`
	DownloadName string `json:"downloadName,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

// NewView extends the state with values derived for display.
func NewView(state session.State) View {
	v := View{State: state}
	if state.File != nil {
		v.FileName = state.File.Name
	}

	if state.Status == session.InProgress {
		v.Loading = session.LoadingMessage(state.Mode)
	}

	if result := state.Result; result != nil {
		v.DownloadName = result.DownloadName()
		v.DownloadURL = result.Ref.URL
		if result.Ref.Local {
			v.DownloadURL += "?download=1"
		}
	}

	return v
}

type pageData struct {
	View
	Modes           []media.Mode
	Preview         template.URL
	MediaURL        template.URL
	Video           bool
	CanGenerate     bool
	RequireIdentity bool
}

func newPageData(state session.State, requireIdentity bool) pageData {
	data := pageData{
		View:            NewView(state),
		Modes:           []media.Mode{media.Image, media.Video},
		RequireIdentity: requireIdentity,
	}

	if state.File != nil && state.File.MIMEType != "" {
		// Previews are data URLs built from the uploaded bytes.
		data.Preview = template.URL(state.File.Preview)
	}

	if result := state.Result; result != nil {
		data.MediaURL = safeURL(result.Ref.URL)
		data.Video = result.Mode == media.Video
	}

	data.CanGenerate = state.Status != session.InProgress && state.File != nil &&
		(!requireIdentity || state.Name.Valid && state.Email.Valid)

	return data
}

func safeURL(url string) template.URL {
	if strings.HasPrefix(url, "/") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://") {
		return template.URL(url)
	}

	return ""
}

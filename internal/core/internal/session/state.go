package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/core/internal/upload"
	"github.com/jfk9w/fuqi/internal/media"

	"gopkg.in/guregu/null.v3"
)

type Status int

const (
	Idle Status = iota
	InProgress
	Succeeded
	Failed
)

var statusNames = [...]string{"idle", "in_progress", "succeeded", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is a resolved generation. It is never modified after creation.
type Result struct {
	Mode      media.Mode `json:"mode"`
	Ref       media.Ref  `json:"ref"`
	Prompt    string     `json:"prompt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// DownloadName is the suggested file name for saving the result.
func (r Result) DownloadName() string {
	return fmt.Sprintf("cny-2026-%s-%d.%s", r.Mode, r.CreatedAt.UnixMilli(), r.Mode.Extension())
}

// State holds everything the page displays for a single session.
type State struct {
	File    *upload.File `json:"-"`
	Mode    media.Mode   `json:"mode"`
	Name    null.String  `json:"name"`
	Email   null.String  `json:"email"`
	Status  Status       `json:"status"`
	Result  *Result      `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
	Caption string       `json:"caption,omitempty"`
}

func NewState() State {
	return State{Mode: media.Image}
}

// Apply returns the state after the event.
// Events which are not applicable in the current state leave it unchanged.
func (s State) Apply(event Event) State {
	return event.apply(s)
}

type Event interface {
	apply(s State) State
}

type FileSelected struct {
	File *upload.File
}

func (e FileSelected) apply(s State) State {
	s.File = e.File
	s.Result = nil
	s.Error = ""
	return s
}

type ModeChanged struct {
	Mode media.Mode
}

func (e ModeChanged) apply(s State) State {
	s.Mode = e.Mode
	s.Error = ""
	return s
}

type IdentityChanged struct {
	Name  null.String
	Email null.String
}

func (e IdentityChanged) apply(s State) State {
	s.Name = e.Name
	s.Email = e.Email
	return s
}

// Rejected is applied when a submission fails validation.
type Rejected struct {
	Message string
}

func (e Rejected) apply(s State) State {
	s.Error = e.Message
	return s
}

type Submitted struct{}

func (e Submitted) apply(s State) State {
	if s.Status == InProgress {
		return s
	}

	s.Status = InProgress
	s.Result = nil
	s.Error = ""
	s.Caption = LoadingMessage(s.Mode)
	return s
}

type Progressed struct {
	Stage resolver.Stage
}

func (e Progressed) apply(s State) State {
	if s.Status != InProgress {
		return s
	}

	s.Caption = Caption(s.Mode, e.Stage)
	return s
}

type Resolved struct {
	Result Result
}

func (e Resolved) apply(s State) State {
	if s.Status != InProgress {
		return s
	}

	result := e.Result
	s.Status = Succeeded
	s.Result = &result
	s.Caption = ""
	return s
}

type ResolveFailed struct {
	Message string
}

func (e ResolveFailed) apply(s State) State {
	if s.Status != InProgress {
		return s
	}

	s.Status = Failed
	s.Error = e.Message
	s.Caption = ""
	return s
}

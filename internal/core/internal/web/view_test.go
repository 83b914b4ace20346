package web

import (
	"testing"

	"github.com/jfk9w/fuqi/internal/core/internal/session"
	"github.com/jfk9w/fuqi/internal/core/internal/upload"

	"github.com/stretchr/testify/assert"
	"gopkg.in/guregu/null.v3"
)

func TestNewPageData_CanGenerate(t *testing.T) {
	state := session.NewState()
	assert.False(t, newPageData(state, false).CanGenerate)

	state = state.Apply(session.FileSelected{File: &upload.File{Name: "me.png", Data: []byte("photo")}})
	assert.True(t, newPageData(state, false).CanGenerate)
	assert.False(t, newPageData(state, true).CanGenerate)

	state = state.Apply(session.IdentityChanged{Name: null.StringFrom("Li Wei")})
	assert.False(t, newPageData(state, true).CanGenerate)

	state = state.Apply(session.IdentityChanged{Name: null.StringFrom("Li Wei"), Email: null.StringFrom("li@example.com")})
	assert.True(t, newPageData(state, true).CanGenerate)

	state = state.Apply(session.Submitted{})
	assert.False(t, newPageData(state, true).CanGenerate)
}

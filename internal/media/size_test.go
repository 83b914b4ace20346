package media_test

import (
	"testing"

	"github.com/jfk9w/fuqi/internal/media"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestSize_UnmarshalYAML(t *testing.T) {
	var config struct {
		Small media.Size `yaml:"small"`
		Large media.Size `yaml:"large"`
		Plain media.Size `yaml:"plain"`
	}

	err := yaml.Unmarshal([]byte("small: 1K\nlarge: 20m\nplain: 100"), &config)
	assert.Nil(t, err)
	assert.Equal(t, media.Size(1024), config.Small)
	assert.Equal(t, 20*media.MB, config.Large)
	assert.Equal(t, media.Size(100), config.Plain)
}

func TestSize_Invalid(t *testing.T) {
	_, err := media.ParseSize("20 megabytes")
	assert.Error(t, err)
}

func TestSize_String(t *testing.T) {
	assert.Equal(t, "20M", (20 * media.MB).String())
	assert.Equal(t, "1025", media.Size(1025).String())
	assert.Equal(t, "256M", media.Size(256<<20).String())
}

func TestParseMode(t *testing.T) {
	mode, err := media.ParseMode(" Video ")
	assert.Nil(t, err)
	assert.Equal(t, media.Video, mode)
	assert.Equal(t, media.VideoPrompt, mode.Prompt())
	assert.Equal(t, "mp4", mode.Extension())

	_, err = media.ParseMode("audio")
	assert.Error(t, err)
	assert.Equal(t, "png", media.Image.Extension())
}

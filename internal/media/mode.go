package media

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Mode is the generation mode requested from the webhook.
type Mode string

const (
	Image Mode = "image"
	Video Mode = "video"
)

const (
	ImagePrompt = "把这张图片变成2026马年新春风格。保留人物主要特征，但让背景和服饰充满节日氛围。" +
		"添加大红灯笼、金色骏马装饰元素、绚丽的烟花背景、红色剪纸。整体画面喜庆洋洋，色彩鲜艳（红色和金色为主），" +
		"高质量，高细节，电影感光效，3D皮克斯风格或高保真摄影风格。"

	VideoPrompt = "2026马年新春贺岁视频。画面中有骏马奔腾的意象（光影或剪纸形式），灯笼在微风中轻轻摇曳，" +
		"背景有绚丽的烟花不断绽放，金色粒子飘落，喜庆热闹的氛围，cinematic lighting, 4k, slow motion, festive fantasy."
)

func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case Image, Video:
		return mode, nil
	default:
		return "", errors.Errorf("unknown mode: %s", value)
	}
}

func (m Mode) String() string {
	return string(m)
}

// Prompt returns the fixed festive prompt for the mode.
func (m Mode) Prompt() string {
	if m == Video {
		return VideoPrompt
	}

	return ImagePrompt
}

// Extension is used for naming downloaded results.
func (m Mode) Extension() string {
	if m == Video {
		return "mp4"
	}

	return "png"
}

func (m *Mode) UnmarshalYAML(node *yaml.Node) (err error) {
	*m, err = ParseMode(node.Value)
	return
}

package session

import (
	"fmt"
	"math"
	"time"

	"github.com/jfk9w/fuqi/internal/core/internal/resolver"
	"github.com/jfk9w/fuqi/internal/media"

	"github.com/pkg/errors"
	"golang.org/x/exp/utf8string"
)

const (
	MissingFileMessage     = "请先上传照片 (Please upload a photo first)"
	MissingIdentityMessage = "请填写姓名和邮箱 (Please enter your name and email)"
	GenericFailureMessage  = "生成失败，请稍后重试。"

	ConfigurationMessage = "配置错误 (Configuration Error)"

	EarlyResponseMessage = ConfigurationMessage + ": the generation workflow closed the connection too early. " +
		`Remove the "Respond - Processing Started" node so that the webhook responds with the final result.`

	NetworkErrorMessage = "⚠️ 网络请求失败 (Network Error)\n" +
		"这通常是因为 n8n 响应超时或 CORS 配置问题。\n" +
		"Failed to connect to webhook. If you removed the early response node, " +
		"ensure your server timeout is > 90s, or the final node includes CORS headers."

	maxBodyPreviewLen = 200
)

// LoadingMessage is displayed while the generation is running.
func LoadingMessage(mode media.Mode) string {
	if mode == media.Video {
		return "正在渲染新春动画 (这可能需要 1-2 分钟)..."
	}

	return "正在绘制新春贺图..."
}

// Caption describes the current stage of the request.
func Caption(mode media.Mode, stage resolver.Stage) string {
	switch {
	case stage == resolver.StageUploading:
		return "正在上传照片..."
	case mode == media.Video:
		return "正在生成视频，预计需要 60-90 秒..."
	default:
		return "正在生成图片，预计需要 30-60 秒..."
	}
}

// Message maps an error to the text displayed to the user.
func Message(err error, timeout time.Duration) string {
	var e *resolver.Error
	if !errors.As(err, &e) {
		return GenericFailureMessage
	}

	switch e.Kind {
	case resolver.KindValidation:
		if e.Err != nil {
			return e.Err.Error()
		}

		return MissingFileMessage

	case resolver.KindHTTP:
		message := fmt.Sprintf("Webhook call failed with status: %d", e.StatusCode)
		if body := utf8string.NewString(e.Body); body.RuneCount() > maxBodyPreviewLen {
			message += " " + body.Slice(0, maxBodyPreviewLen) + "…"
		} else if e.Body != "" {
			message += " " + e.Body
		}

		return message

	case resolver.KindTimeout:
		if timeout <= 0 {
			timeout = resolver.DefaultTimeout
		}

		return fmt.Sprintf("请求超时。生成时间超过 %d 分钟，请稍后重试。", int(math.Ceil(timeout.Minutes())))

	case resolver.KindConfiguration:
		switch {
		case errors.Is(e, resolver.ErrEarlyResponse):
			return EarlyResponseMessage
		case e.Err != nil:
			return ConfigurationMessage + ": " + e.Err.Error()
		default:
			return ConfigurationMessage
		}

	case resolver.KindMalformedResponse:
		return GenericFailureMessage + " (No media URL found in response)"

	case resolver.KindUnexpectedFormat:
		return "Unexpected response format"

	default:
		return NetworkErrorMessage
	}
}

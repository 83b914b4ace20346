package resolver

// FormFields names the multipart fields of a generation request.
// The backend workflow binds to these names, so they are versioned.
type FormFields struct {
	Payload  string
	FileName string
	Prompt   string
	Mode     string
	Name     string
	Email    string
}

var FormFieldsV1 = FormFields{
	Payload:  "data",
	FileName: "fileName",
	Prompt:   "prompt",
	Mode:     "mode",
	Name:     "name",
	Email:    "email",
}

// DefaultCandidateKeys are looked up in JSON responses in this order.
var DefaultCandidateKeys = []string{
	"url", "output", "image", "video", "result",
	"imageUrl", "videoUrl", "file", "fileUrl", "downloadUrl",
}

// Stage is reported to the progress callback while the request is running.
type Stage int

const (
	StageUploading Stage = iota + 1
	StageGenerating
)

func (s Stage) String() string {
	switch s {
	case StageUploading:
		return "uploading"
	case StageGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

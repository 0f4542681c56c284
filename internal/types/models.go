package types

// Status of a PipelineResult.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
)

// MetricsErrorKey marks a collaborator result that only partially succeeded.
const MetricsErrorKey = "error"

// Metrics are named measurements produced by a feature analyzer.
type Metrics map[string]any

// Failed reports whether the analyzer embedded an error marker.
func (m Metrics) Failed() bool {
	_, ok := m[MetricsErrorKey]
	return ok
}

// Usable reports whether m can be placed in a result.
func (m Metrics) Usable() bool {
	return len(m) > 0 && !m.Failed()
}

// UploadedMedia is the stored copy of the client's upload.
type UploadedMedia struct {
	Path         string `json:"path"`
	Extension    string `json:"extension"`
	OriginalName string `json:"original_name"`
}

// NormalizedMedia is the converted copy of an upload whose container downstream tools reject.
type NormalizedMedia struct {
	Path string `json:"path"`
}

// AudioArtifact is the extracted audio track at the well-known location.
type AudioArtifact struct {
	Path string `json:"path"`
}

// PipelineResult is returned by /process on success.
type PipelineResult struct {
	VideoFile           string  `json:"video_file"`
	InterviewQuestion   string  `json:"interview_question"`
	Status              Status  `json:"status"`
	Transcript          *string `json:"transcript,omitempty"`
	AudioMetrics        Metrics `json:"audio_metrics,omitempty"`
	VideoMetrics        Metrics `json:"video_metrics,omitempty"`
	SynthesizedAnalysis any     `json:"synthesized_analysis,omitempty"`
	SynthesisError      string  `json:"synthesis_error,omitempty"`

	// MediaPath is the retained media artifact on disk; not part of the response body.
	MediaPath string `json:"-"`
}

// ErrorResponse is the structured failure body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	VideoFile string `json:"video_file,omitempty"`
}

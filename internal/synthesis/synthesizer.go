package synthesis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
	"interview-insights-go/internal/types"
)

const (
	// UnconfiguredMessage is recorded when no analysis service is wired in.
	UnconfiguredMessage = "analysis service not configured"
	unknownErrorMessage = "unknown analysis service error"
)

// Request is what the analysis service receives.
type Request struct {
	Question   string
	Transcript string
	AudioText  string
	VideoText  string
}

// Service is the external multimodal analysis collaborator. A returned error is
// the service's explicit error message.
type Service interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// Outcome is either an analysis (parsed JSON or raw text) or an error message.
type Outcome struct {
	Analysis any
	Error    string
}

// Synthesizer formats metrics, calls the service and interprets its answer.
type Synthesizer struct {
	service Service
	log     *logrus.Entry
}

// New builds a Synthesizer; a nil service means unconfigured.
func New(service Service, log *logrus.Entry) *Synthesizer {
	return &Synthesizer{service: service, log: log}
}

// Configured reports whether a service is wired in.
func (s *Synthesizer) Configured() bool { return s != nil && s.service != nil }

// Synthesize never fails: every problem becomes Outcome.Error.
func (s *Synthesizer) Synthesize(ctx context.Context, question, transcript string, audio, video types.Metrics) Outcome {
	if !s.Configured() {
		return Outcome{Error: UnconfiguredMessage}
	}
	req := Request{
		Question:   question,
		Transcript: transcript,
		AudioText:  FormatAudio(audio),
		VideoText:  FormatVideo(video),
	}
	text, err := s.service.Analyze(ctx, req)
	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = unknownErrorMessage
		}
		if s.log != nil {
			s.log.WithField("error", msg).Warn("analysis service returned an error")
		}
		return Outcome{Error: msg}
	}
	return Outcome{Analysis: ExtractJSON(text)}
}

// ExtractJSON parses the text between the first '{' and the last '}'. When there is no
// such span or it does not parse, the raw text is returned.
func ExtractJSON(text string) any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	var parsed any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return text
	}
	return parsed
}

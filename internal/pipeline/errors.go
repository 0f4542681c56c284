package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a run stopped or degraded.
type Kind string

const (
	KindValidation    Kind = "ValidationFailed"
	KindConversion    Kind = "ConversionFailed"
	KindExtraction    Kind = "ExtractionFailed"
	KindTranscription Kind = "TranscriptionFailed"
	KindDegraded      Kind = "AnalysisDegraded"
	KindUnhandled     Kind = "UnhandledFault"
)

// Stage names a step of the run.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageStore        Stage = "store"
	StageNormalize    Stage = "normalize"
	StageExtractAudio Stage = "extract_audio"
	StageTranscribe   Stage = "transcribe"
	StageAnalyzeAudio Stage = "analyze_audio"
	StageAnalyzeVideo Stage = "analyze_video"
	StageSynthesize   Stage = "synthesize"
	StageFinalize     Stage = "finalize"
)

// Error is returned by Run for every abort-class outcome.
type Error struct {
	Kind      Kind
	Stage     Stage
	Message   string
	VideoFile string
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Stage, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the Kind of err, or KindUnhandled for foreign errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnhandled
}

// Action is what the orchestrator does after a stage.
type Action int

const (
	Continue Action = iota
	Degrade
	Abort
)

// StageOutcome is the tagged result of one stage.
type StageOutcome struct {
	Stage   Stage
	Action  Action
	Kind    Kind
	Message string
	Err     error
}

func succeeded(stage Stage) StageOutcome {
	return StageOutcome{Stage: stage, Action: Continue}
}

func degraded(stage Stage, err error) StageOutcome {
	return StageOutcome{Stage: stage, Action: Degrade, Kind: KindDegraded, Err: err}
}

func aborted(stage Stage, kind Kind, msg string, err error) StageOutcome {
	return StageOutcome{Stage: stage, Action: Abort, Kind: kind, Message: msg, Err: err}
}

// asError turns an abort outcome into the error Run returns.
func (o StageOutcome) asError(videoFile string) *Error {
	return &Error{Kind: o.Kind, Stage: o.Stage, Message: o.Message, VideoFile: videoFile, Err: o.Err}
}

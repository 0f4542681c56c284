package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"interview-insights-go/internal/artifact"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/normalizer"
	"interview-insights-go/internal/synthesis"
	"interview-insights-go/internal/types"
)

// Normalizer converts an upload into a container downstream stages accept.
type Normalizer interface {
	Normalize(ctx context.Context, src string) (types.NormalizedMedia, error)
}

// AudioExtractor writes the audio track of mediaPath to outputPath.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, mediaPath, outputPath string) error
}

// Transcriber turns audio into text. Any error means the transcript is absent.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// AudioAnalyzer computes audio feature metrics.
type AudioAnalyzer interface {
	AnalyzeAudio(ctx context.Context, audioPath, transcript string) (types.Metrics, error)
}

// VideoAnalyzer computes video feature metrics.
type VideoAnalyzer interface {
	AnalyzeVideo(ctx context.Context, mediaPath string) (types.Metrics, error)
}

// Collaborators are the external steps a run drives. Extractor and Transcriber are
// required; missing analyzers degrade and a nil Synthesizer reports the service as unconfigured.
type Collaborators struct {
	Normalizer    Normalizer
	Extractor     AudioExtractor
	Transcriber   Transcriber
	AudioAnalyzer AudioAnalyzer
	VideoAnalyzer VideoAnalyzer
	Synthesizer   *synthesis.Synthesizer
}

// Submission is one upload plus its interview question. A nil Content means the
// request carried no media.
type Submission struct {
	Filename string
	Question string
	Content  io.Reader
}

const (
	msgNoMedia       = "No video part in the request"
	msgNoQuestion    = "No interview_question provided"
	msgNoFilename    = "No selected file"
	msgNotAllowed    = "File type not allowed"
	msgTooLarge      = "File exceeds the maximum upload size"
	msgExtraction    = "Audio extraction failed"
	msgTranscription = "Transcription failed"
	msgUnhandled     = "Error processing video"

	lockRetryDelay = 100 * time.Millisecond
)

// ErrUploadTooLarge is wrapped by the validation error for uploads over the size limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Orchestrator runs submissions through the fixed stage sequence.
type Orchestrator struct {
	cfg   config.Config
	c     Collaborators
	log   *logrus.Entry
	newID func() string
}

func New(cfg config.Config, c Collaborators, log *logrus.Entry) (*Orchestrator, error) {
	if c.Extractor == nil {
		return nil, errors.New("pipeline: audio extractor is required")
	}
	if c.Transcriber == nil {
		return nil, errors.New("pipeline: transcriber is required")
	}
	if c.Normalizer == nil && len(cfg.NormalizeExtensions) > 0 {
		return nil, errors.New("pipeline: normalizer is required when normalize_extensions is set")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{cfg: cfg, c: c, log: log, newID: uuid.NewString}, nil
}

// Validate checks a submission before anything touches the upload directory.
func (o *Orchestrator) Validate(sub Submission) *Error {
	fail := func(msg string) *Error {
		return &Error{Kind: KindValidation, Stage: StageValidate, Message: msg}
	}
	switch {
	case sub.Content == nil:
		return fail(msgNoMedia)
	case strings.TrimSpace(sub.Question) == "":
		return fail(msgNoQuestion)
	case strings.TrimSpace(sub.Filename) == "":
		return fail(msgNoFilename)
	case !o.cfg.Allowed(Extension(sub.Filename)):
		return fail(msgNotAllowed)
	}
	return nil
}

// run is the per-request state. Nothing here is shared between requests.
type run struct {
	o         *Orchestrator
	log       *logrus.Entry
	ledger    *artifact.Ledger
	audioLock *flock.Flock
	upload    types.UploadedMedia
	media     string
	audio     types.AudioArtifact
	result    types.PipelineResult
}

// Run executes every stage for sub. On an abort it returns a *Error; cleanup of
// transient artifacts happens on every path, including panics.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (result types.PipelineResult, err error) {
	if verr := o.Validate(sub); verr != nil {
		o.log.WithField("reason", verr.Message).Warn("submission rejected")
		return types.PipelineResult{}, verr
	}

	ext := Extension(sub.Filename)
	r := &run{
		o:   o,
		log: o.log,
		result: types.PipelineResult{
			VideoFile:         displayName(sub.Filename, ext),
			InterviewQuestion: sub.Question,
			Status:            types.StatusProcessing,
		},
	}
	r.log = o.log.WithField("video_file", r.result.VideoFile)
	r.ledger = artifact.NewLedger(r.log)

	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", fmt.Sprint(p)).Error("pipeline fault")
			err = &Error{
				Kind:      KindUnhandled,
				Stage:     StageFinalize,
				Message:   msgUnhandled,
				VideoFile: r.result.VideoFile,
				Err:       fmt.Errorf("panic: %v", p),
			}
		}
		r.finalize(err == nil)
		result = r.result
	}()

	for _, step := range []func(context.Context) StageOutcome{
		func(ctx context.Context) StageOutcome { return r.store(ctx, sub, ext) },
		r.normalize,
		r.extractAudio,
		r.transcribe,
		r.analyze,
		r.synthesize,
	} {
		out := step(ctx)
		switch out.Action {
		case Abort:
			perr := out.asError(r.result.VideoFile)
			r.log.WithField("stage", out.Stage).WithField("kind", out.Kind).WithField("error", errString(out.Err)).Warn("pipeline aborted")
			return r.result, perr
		case Degrade:
			r.log.WithField("stage", out.Stage).WithField("error", errString(out.Err)).Warn("stage degraded")
		}
	}
	return r.result, nil
}

func (r *run) store(ctx context.Context, sub Submission, ext string) StageOutcome {
	dir := r.o.cfg.UploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return aborted(StageStore, KindUnhandled, msgUnhandled, fmt.Errorf("create upload dir: %w", err))
	}
	path := filepath.Join(dir, r.o.newID()+"."+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return aborted(StageStore, KindUnhandled, msgUnhandled, fmt.Errorf("create upload: %w", err))
	}
	r.ledger.Track(path, string(StageStore), artifact.Retained)

	limit := r.o.cfg.MaxUploadBytes
	readLimit := limit
	if limit < math.MaxInt64 {
		// One byte past the limit tells an exact fit from an oversized upload.
		readLimit = limit + 1
	}
	n, copyErr := io.Copy(f, io.LimitReader(sub.Content, readLimit))
	closeErr := f.Close()
	if n > limit {
		r.ledger.Release(path)
		return aborted(StageStore, KindValidation, msgTooLarge, fmt.Errorf("%w: limit %d bytes", ErrUploadTooLarge, limit))
	}
	if err := errors.Join(copyErr, closeErr); err != nil {
		r.ledger.Release(path)
		return aborted(StageStore, KindUnhandled, msgUnhandled, fmt.Errorf("write upload: %w", err))
	}

	r.upload = types.UploadedMedia{Path: path, Extension: ext, OriginalName: sub.Filename}
	r.media = path
	r.log.WithField("path", path).WithField("bytes", n).Info("upload stored")
	return succeeded(StageStore)
}

func (r *run) normalize(ctx context.Context) StageOutcome {
	if !r.o.cfg.NeedsNormalization(r.upload.Extension) {
		return succeeded(StageNormalize)
	}
	r.log.WithField("extension", r.upload.Extension).Info("normalizing upload")
	nm, err := r.o.c.Normalizer.Normalize(ctx, r.upload.Path)
	if err != nil {
		msg := fmt.Sprintf("Failed to convert .%s file to .%s", r.upload.Extension, normalizer.TargetExtension)
		return aborted(StageNormalize, KindConversion, msg, err)
	}
	r.ledger.Track(nm.Path, string(StageNormalize), artifact.Retained)
	r.ledger.Supersede(r.upload.Path)
	r.media = nm.Path
	r.result.VideoFile = withExtension(r.result.VideoFile, normalizer.TargetExtension)
	r.log = r.log.WithField("video_file", r.result.VideoFile)
	return succeeded(StageNormalize)
}

func (r *run) extractAudio(ctx context.Context) StageOutcome {
	audio := types.AudioArtifact{Path: r.o.cfg.AudioArtifactPath}
	if err := r.lockAudio(ctx, audio.Path); err != nil {
		return aborted(StageExtractAudio, KindUnhandled, msgUnhandled, err)
	}
	r.audio = audio
	// Tracked before extraction so a partial write is removed too.
	r.ledger.Track(audio.Path, string(StageExtractAudio), artifact.Transient)
	if err := r.o.c.Extractor.ExtractAudio(ctx, r.media, audio.Path); err != nil {
		return aborted(StageExtractAudio, KindExtraction, msgExtraction, err)
	}
	return succeeded(StageExtractAudio)
}

func (r *run) transcribe(ctx context.Context) StageOutcome {
	transcript, err := r.o.c.Transcriber.Transcribe(ctx, r.audio.Path)
	if err != nil {
		r.ledger.Release(r.audio.Path)
		return aborted(StageTranscribe, KindTranscription, msgTranscription, err)
	}
	r.log.WithField("chars", len(transcript)).Info("transcript received")
	r.result.Transcript = &transcript
	return succeeded(StageTranscribe)
}

// analyze runs the audio and video analyzers concurrently; either may degrade.
func (r *run) analyze(ctx context.Context) StageOutcome {
	var (
		wg                   sync.WaitGroup
		audioOut, videoOut   StageOutcome
		audioMets, videoMets types.Metrics
	)
	transcript := ""
	if r.result.Transcript != nil {
		transcript = *r.result.Transcript
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		audioMets, audioOut = guard(StageAnalyzeAudio, func() (types.Metrics, error) {
			if r.o.c.AudioAnalyzer == nil {
				return nil, errors.New("no audio analyzer configured")
			}
			return r.o.c.AudioAnalyzer.AnalyzeAudio(ctx, r.audio.Path, transcript)
		})
	}()
	go func() {
		defer wg.Done()
		videoMets, videoOut = guard(StageAnalyzeVideo, func() (types.Metrics, error) {
			if r.o.c.VideoAnalyzer == nil {
				return nil, errors.New("no video analyzer configured")
			}
			return r.o.c.VideoAnalyzer.AnalyzeVideo(ctx, r.media)
		})
	}()
	wg.Wait()

	if audioOut.Action == Continue {
		r.result.AudioMetrics = audioMets
	} else {
		r.log.WithField("stage", audioOut.Stage).WithField("error", errString(audioOut.Err)).Warn("audio metrics omitted")
	}
	if videoOut.Action == Continue {
		r.result.VideoMetrics = videoMets
	} else {
		r.log.WithField("stage", videoOut.Stage).WithField("error", errString(videoOut.Err)).Warn("video metrics omitted")
	}
	return succeeded(StageAnalyzeVideo)
}

// guard converts analyzer failures, absent or error-tagged results and panics into a degrade.
func guard(stage Stage, fn func() (types.Metrics, error)) (m types.Metrics, out StageOutcome) {
	defer func() {
		if p := recover(); p != nil {
			m, out = nil, degraded(stage, fmt.Errorf("panic: %v", p))
		}
	}()
	m, err := fn()
	switch {
	case err != nil:
		return nil, degraded(stage, err)
	case len(m) == 0:
		return nil, degraded(stage, errors.New("no metrics returned"))
	case m.Failed():
		return nil, degraded(stage, fmt.Errorf("analyzer reported: %v", m[types.MetricsErrorKey]))
	}
	return m, succeeded(stage)
}

func (r *run) synthesize(ctx context.Context) StageOutcome {
	transcript := ""
	if r.result.Transcript != nil {
		transcript = *r.result.Transcript
	}
	out := r.o.c.Synthesizer.Synthesize(ctx, r.result.InterviewQuestion, transcript, r.result.AudioMetrics, r.result.VideoMetrics)
	if out.Error != "" {
		r.result.SynthesisError = out.Error
		return degraded(StageSynthesize, errors.New(out.Error))
	}
	r.result.SynthesizedAnalysis = out.Analysis
	return succeeded(StageSynthesize)
}

// finalize applies artifact retention and releases the audio lock. It never fails.
func (r *run) finalize(completed bool) {
	rep, kept := r.ledger.Finalize()
	if !rep.OK() {
		r.log.WithField("failures", len(rep.Errors)).Warn("cleanup left artifacts behind")
	}
	r.unlockAudio()
	if completed {
		r.result.Status = types.StatusComplete
		r.result.MediaPath = r.media
	}
	fields := logrus.Fields{"completed": completed, "removed": len(rep.Removed), "kept": len(kept)}
	r.log.WithFields(fields).Info("pipeline finalized")
}

func (r *run) lockAudio(ctx context.Context, audio string) error {
	if err := os.MkdirAll(filepath.Dir(audio), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	// The lock file is left in place after unlock. Unlinking it would let a waiter
	// still blocked on the old inode and a newcomer on a fresh file hold it at once.
	lock := flock.New(audio + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock audio artifact: %w", err)
	}
	if !ok {
		return errors.New("lock audio artifact: not acquired")
	}
	r.audioLock = lock
	return nil
}

func (r *run) unlockAudio() {
	if r.audioLock == nil {
		return
	}
	if err := r.audioLock.Unlock(); err != nil {
		r.log.WithError(err).Warn("failed to release audio lock")
	}
	r.audioLock = nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

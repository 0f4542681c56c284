package normalizer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"interview-insights-go/internal/command"
	"interview-insights-go/internal/types"
)

// ErrConversionFailed is wrapped by every Normalize failure.
var ErrConversionFailed = errors.New("conversion failed")

// TargetExtension is the container every downstream stage accepts.
const TargetExtension = "mp4"

// Normalizer converts uploads into an mp4 container with ffmpeg.
type Normalizer struct {
	ffmpegPath string
	outputDir  string
	runner     command.Runner
	createTemp func(dir, pattern string) (*os.File, error)
	log        *logrus.Entry
}

func New(ffmpegPath, outputDir string, runner command.Runner, log *logrus.Entry) *Normalizer {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
		runner:     runner,
		createTemp: os.CreateTemp,
		log:        log,
	}
}

// Normalize writes an mp4 copy of src to a fresh path in the output directory.
// A missing or zero-byte output counts as failure and is removed.
func (n *Normalizer) Normalize(ctx context.Context, src string) (types.NormalizedMedia, error) {
	info, err := os.Stat(src)
	if err != nil {
		return types.NormalizedMedia{}, fmt.Errorf("%w: source %s: %v", ErrConversionFailed, src, err)
	}
	if info.Size() == 0 {
		return types.NormalizedMedia{}, fmt.Errorf("%w: source %s is empty", ErrConversionFailed, src)
	}

	out, err := n.createTemp(n.outputDir, "*."+TargetExtension)
	if err != nil {
		return types.NormalizedMedia{}, fmt.Errorf("%w: allocate output: %v", ErrConversionFailed, err)
	}
	outPath := out.Name()
	_ = out.Close()

	log := n.entry().WithField("source", src).WithField("output", outPath)
	log.Info("converting media to mp4")

	if _, err := command.Exec(ctx, n.runner, n.ffmpegPath, Args(src, outPath)...); err != nil {
		n.discard(outPath)
		log.WithError(err).Warn("ffmpeg conversion failed")
		return types.NormalizedMedia{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	st, err := os.Stat(outPath)
	if err != nil || st.Size() == 0 {
		n.discard(outPath)
		log.Warn("conversion produced no output")
		return types.NormalizedMedia{}, fmt.Errorf("%w: output %s is empty or missing", ErrConversionFailed, outPath)
	}

	log.WithField("bytes", st.Size()).Info("conversion successful")
	return types.NormalizedMedia{Path: outPath}, nil
}

// Args builds the ffmpeg command line for src -> out.
func Args(src, out string) []string {
	return []string{
		"-i", src,
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		"-strict", "experimental",
		"-b:a", "128k",
		"-y",
		out,
	}
}

func (n *Normalizer) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		n.entry().WithField("path", path).WithError(err).Warn("failed to remove partial output")
	}
}

func (n *Normalizer) entry() *logrus.Entry {
	if n.log != nil {
		return n.log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

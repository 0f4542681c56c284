package media

import (
	"context"
	"fmt"
	"os"

	"interview-insights-go/internal/command"
)

// FFmpegExtractor pulls the audio track out of a media file as 16 kHz mono PCM WAV.
type FFmpegExtractor struct {
	ffmpegPath string
	runner     command.Runner
}

func NewFFmpegExtractor(ffmpegPath string, runner command.Runner) *FFmpegExtractor {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath, runner: runner}
}

// ExtractAudio writes the audio of mediaPath to outputPath, overwriting it.
func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, mediaPath, outputPath string) error {
	args := []string{
		"-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	}
	if _, err := command.Exec(ctx, e.runner, e.ffmpegPath, args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("extract audio: output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("extract audio: output %s is empty", outputPath)
	}
	return nil
}

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"interview-insights-go/internal/command"
	"interview-insights-go/internal/types"
)

var fillerWords = map[string]bool{
	"um": true, "uh": true, "erm": true, "ah": true, "hmm": true,
	"like": true, "basically": true, "actually": true, "literally": true,
}

// AudioFeatures derives pacing metrics from the audio duration and the transcript.
type AudioFeatures struct {
	prober *Prober
}

func NewAudioFeatures(p *Prober) *AudioFeatures { return &AudioFeatures{prober: p} }

func (a *AudioFeatures) AnalyzeAudio(ctx context.Context, audioPath, transcript string) (types.Metrics, error) {
	probe, err := a.prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return types.Metrics{types.MetricsErrorKey: "audio duration unknown"}, nil
	}

	words := tokenize(transcript)
	fillers := map[string]int{}
	fillerTotal := 0
	for _, w := range words {
		if fillerWords[w] {
			fillers[w]++
			fillerTotal++
		}
	}

	m := types.Metrics{
		"duration_seconds":  round2(duration),
		"word_count":        len(words),
		"speaking_rate_wpm": round2(float64(len(words)) / (duration / 60)),
		"filler_word_ratio": 0.0,
	}
	if len(words) > 0 {
		m["filler_word_ratio"] = round2(float64(fillerTotal) / float64(len(words)))
	}
	if len(fillers) > 0 {
		m["filler_words"] = fillers
	}
	return m, nil
}

// VideoFeatures reports stream level properties of the media file.
type VideoFeatures struct {
	prober *Prober
}

func NewVideoFeatures(p *Prober) *VideoFeatures { return &VideoFeatures{prober: p} }

func (v *VideoFeatures) AnalyzeVideo(ctx context.Context, mediaPath string) (types.Metrics, error) {
	probe, err := v.prober.Probe(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	stream, ok := probe.Stream("video")
	if !ok {
		return types.Metrics{types.MetricsErrorKey: "no video stream found"}, nil
	}
	_, hasAudio := probe.Stream("audio")
	return types.Metrics{
		"duration_seconds": round2(probe.DurationSeconds()),
		"resolution":       fmt.Sprintf("%dx%d", stream.Width, stream.Height),
		"frame_rate":       round2(stream.FrameRate()),
		"video_codec":      stream.CodecName,
		"has_audio":        hasAudio,
	}, nil
}

// CommandAnalyzer delegates to an external program that prints a JSON object of metrics.
// The media path (and, for audio, the transcript) are appended as arguments.
type CommandAnalyzer struct {
	name   string
	args   []string
	runner command.Runner
}

// NewCommandAnalyzer parses a whitespace separated command line.
func NewCommandAnalyzer(commandLine string, runner command.Runner) (*CommandAnalyzer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("analyzer command is empty")
	}
	if runner == nil {
		runner = command.ExecRunner{}
	}
	return &CommandAnalyzer{name: fields[0], args: fields[1:], runner: runner}, nil
}

func (c *CommandAnalyzer) AnalyzeAudio(ctx context.Context, audioPath, transcript string) (types.Metrics, error) {
	return c.run(ctx, audioPath, transcript)
}

func (c *CommandAnalyzer) AnalyzeVideo(ctx context.Context, mediaPath string) (types.Metrics, error) {
	return c.run(ctx, mediaPath)
}

func (c *CommandAnalyzer) run(ctx context.Context, extra ...string) (types.Metrics, error) {
	args := append(append([]string(nil), c.args...), extra...)
	res, err := command.Exec(ctx, c.runner, c.name, args...)
	if err != nil {
		return nil, fmt.Errorf("analyzer %s: %w", c.name, err)
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" || out == "null" {
		return nil, nil
	}
	var m types.Metrics
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		return nil, fmt.Errorf("analyzer %s: decode output: %w", c.name, err)
	}
	return m, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

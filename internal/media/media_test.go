package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"interview-insights-go/internal/command"
	"interview-insights-go/internal/types"
)

type fakeRunner struct {
	run  func(ctx context.Context, name string, args ...string) (command.Result, error)
	args [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	f.args = append(f.args, append([]string{name}, args...))
	if f.run == nil {
		return command.Result{}, nil
	}
	return f.run(ctx, name, args...)
}

func stdout(s string) *fakeRunner {
	return &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		return command.Result{Stdout: s}, nil
	}}
}

const videoProbe = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "avg_frame_rate": "30000/1001"},
    {"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"duration": "62.500000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestExtractAudioWritesWav(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "audio.wav")
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		return command.Result{}, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
	}}

	if err := NewFFmpegExtractor("", runner).ExtractAudio(context.Background(), "in.mp4", out); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	got := runner.args[0]
	if got[0] != "ffmpeg" || got[2] != "in.mp4" || got[len(got)-1] != out {
		t.Fatalf("args = %v", got)
	}
}

func TestExtractAudioFailures(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "audio.wav")

	failing := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		return command.Result{ExitCode: 1, Stderr: "no audio stream"}, errors.New("exit status 1")
	}}
	var cmdErr *command.Error
	if err := NewFFmpegExtractor("ffmpeg", failing).ExtractAudio(context.Background(), "in.mp4", out); !errors.As(err, &cmdErr) {
		t.Fatalf("expected command error, got %v", err)
	}

	// Exit 0 with no output file.
	if err := NewFFmpegExtractor("ffmpeg", &fakeRunner{}).ExtractAudio(context.Background(), "in.mp4", out); err == nil {
		t.Fatal("expected error for missing output")
	}
}

func TestVideoFeatures(t *testing.T) {
	m, err := NewVideoFeatures(NewProber("", stdout(videoProbe))).AnalyzeVideo(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("AnalyzeVideo() error = %v", err)
	}
	want := types.Metrics{
		"duration_seconds": 62.5,
		"resolution":       "1280x720",
		"frame_rate":       29.97,
		"video_codec":      "h264",
		"has_audio":        true,
	}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("metrics = %#v", m)
	}
}

func TestVideoFeaturesWithoutVideoStreamIsMarked(t *testing.T) {
	m, err := NewVideoFeatures(NewProber("", stdout(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`))).AnalyzeVideo(context.Background(), "in.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Failed() {
		t.Fatalf("expected error marker, got %v", m)
	}
}

func TestAudioFeatures(t *testing.T) {
	probe := `{"streams":[{"codec_type":"audio"}],"format":{"duration":"30.0"}}`
	transcript := "Um, I think I basically led the team. Uh, we shipped it."
	m, err := NewAudioFeatures(NewProber("", stdout(probe))).AnalyzeAudio(context.Background(), "a.wav", transcript)
	if err != nil {
		t.Fatalf("AnalyzeAudio() error = %v", err)
	}
	if m["word_count"] != 12 {
		t.Fatalf("word_count = %v", m["word_count"])
	}
	if m["speaking_rate_wpm"] != 24.0 {
		t.Fatalf("wpm = %v", m["speaking_rate_wpm"])
	}
	if !reflect.DeepEqual(m["filler_words"], map[string]int{"um": 1, "uh": 1, "basically": 1}) {
		t.Fatalf("fillers = %v", m["filler_words"])
	}
	if m["filler_word_ratio"] != 0.25 {
		t.Fatalf("ratio = %v", m["filler_word_ratio"])
	}
}

func TestAudioFeaturesUnknownDuration(t *testing.T) {
	m, err := NewAudioFeatures(NewProber("", stdout(`{"format":{}}`))).AnalyzeAudio(context.Background(), "a.wav", "hello")
	if err != nil || !m.Failed() {
		t.Fatalf("expected marked metrics, got %v, %v", m, err)
	}
}

func TestCommandAnalyzer(t *testing.T) {
	runner := stdout(`{"eye_contact_ratio": 0.7, "emotion_distribution": {"happy": 2}}`)
	a, err := NewCommandAnalyzer("python3 analyze_video.py --fast", runner)
	if err != nil {
		t.Fatal(err)
	}
	m, err := a.AnalyzeVideo(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("AnalyzeVideo() error = %v", err)
	}
	if m["eye_contact_ratio"] != 0.7 {
		t.Fatalf("metrics = %v", m)
	}
	want := []string{"python3", "analyze_video.py", "--fast", "clip.mp4"}
	if !reflect.DeepEqual(runner.args[0], want) {
		t.Fatalf("args = %v", runner.args[0])
	}

	if _, err := a.AnalyzeAudio(context.Background(), "a.wav", "transcript"); err != nil {
		t.Fatal(err)
	}
	if got := runner.args[1]; got[len(got)-2] != "a.wav" || got[len(got)-1] != "transcript" {
		t.Fatalf("audio args = %v", got)
	}
}

func TestCommandAnalyzerEdgeCases(t *testing.T) {
	if _, err := NewCommandAnalyzer("   ", nil); err == nil {
		t.Fatal("expected error for empty command")
	}
	a, _ := NewCommandAnalyzer("analyzer", stdout("null"))
	if m, err := a.AnalyzeVideo(context.Background(), "x"); m != nil || err != nil {
		t.Fatalf("null output should be absent, got %v %v", m, err)
	}
	a, _ = NewCommandAnalyzer("analyzer", stdout("not json"))
	if _, err := a.AnalyzeVideo(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

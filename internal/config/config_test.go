package config

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestLoadDefaultsWithMock(t *testing.T) {
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UploadDir != "uploads" || cfg.MaxUploadBytes != 100*1024*1024 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Allowed("MP4") || cfg.Allowed("exe") {
		t.Fatal("allowed extension check wrong")
	}
	if !cfg.NeedsNormalization("webm") || cfg.NeedsNormalization("mp4") {
		t.Fatal("normalization check wrong")
	}
	if cfg.AnalysisConfigured() {
		t.Fatal("analysis should be unconfigured without an API key")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
upload_dir = "/srv/uploads"
allowed_extensions = [".MP4", "webm", "mov"]
normalize_extensions = ["webm", "mov"]
transcribe_url = "http://stt.local/"
max_upload_bytes = 2048
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UPLOAD_DIR", "/data/uploads")
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UploadDir != "/data/uploads" {
		t.Fatalf("env should override file, got %q", cfg.UploadDir)
	}
	if !slices.Equal(cfg.AllowedExtensions, []string{"mp4", "webm", "mov"}) {
		t.Fatalf("allowed = %v", cfg.AllowedExtensions)
	}
	if cfg.TranscribeURL != "http://stt.local" {
		t.Fatalf("transcribe url = %q", cfg.TranscribeURL)
	}
	if cfg.MaxUploadBytes != 2048 || !cfg.AnalysisConfigured() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "MAX_UPLOAD_BYTES") {
		t.Fatalf("expected MAX_UPLOAD_BYTES error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.NormalizeExtensions = []string{"flv"}
	cfg.UploadDir = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"upload_dir", `"flv"`, "transcribe_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}

	ok := Default()
	ok.MockTranscribe = true
	if err := ok.Validate(); err != nil {
		t.Fatalf("default+mock should validate: %v", err)
	}
}

func TestValidateUploadLimitBounds(t *testing.T) {
	for _, n := range []int64{0, -1, MaxUploadLimit + 1, math.MaxInt64} {
		cfg := Default()
		cfg.MockTranscribe = true
		cfg.MaxUploadBytes = n
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_upload_bytes") {
			t.Fatalf("MaxUploadBytes=%d: err = %v", n, err)
		}
	}
	cfg := Default()
	cfg.MockTranscribe = true
	cfg.MaxUploadBytes = MaxUploadLimit
	if err := cfg.Validate(); err != nil {
		t.Fatalf("limit at cap should validate: %v", err)
	}
}

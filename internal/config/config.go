package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the runtime configuration handed to the pipeline and server.
type Config struct {
	Port        string `toml:"port"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`

	UploadDir           string   `toml:"upload_dir"`
	MaxUploadBytes      int64    `toml:"max_upload_bytes"`
	AllowedExtensions   []string `toml:"allowed_extensions"`
	NormalizeExtensions []string `toml:"normalize_extensions"`
	AudioArtifactPath   string   `toml:"audio_artifact_path"`

	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`

	TranscribeURL  string `toml:"transcribe_url"`
	MockTranscribe bool   `toml:"mock_transcribe"`

	GeminiAPIKey         string `toml:"gemini_api_key"`
	GeminiEndpoint       string `toml:"gemini_endpoint"`
	GeminiTimeoutSeconds int    `toml:"gemini_timeout_seconds"`

	AudioAnalyzerCmd string `toml:"audio_analyzer_cmd"`
	VideoAnalyzerCmd string `toml:"video_analyzer_cmd"`
}

// Load layers defaults, an optional TOML file and the environment, then validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.Split(v, ",")
		}
	}

	str("PORT", &c.Port)
	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("UPLOAD_DIR", &c.UploadDir)
	list("ALLOWED_EXTENSIONS", &c.AllowedExtensions)
	list("NORMALIZE_EXTENSIONS", &c.NormalizeExtensions)
	str("AUDIO_ARTIFACT_PATH", &c.AudioArtifactPath)
	str("FFMPEG_PATH", &c.FFmpegPath)
	str("FFPROBE_PATH", &c.FFprobePath)
	str("TRANSCRIBE_URL", &c.TranscribeURL)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("GEMINI_ENDPOINT", &c.GeminiEndpoint)
	str("AUDIO_ANALYZER_CMD", &c.AudioAnalyzerCmd)
	str("VIDEO_ANALYZER_CMD", &c.VideoAnalyzerCmd)

	if v, ok := lookup("USE_MOCK_TRANSCRIBE"); ok && v != "" {
		c.MockTranscribe = v == "true"
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := lookup("GEMINI_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("GEMINI_TIMEOUT_SECONDS: %w", err)
		}
		c.GeminiTimeoutSeconds = n
	}
	return nil
}

func (c *Config) normalize() {
	c.AllowedExtensions = normalizeExtensions(c.AllowedExtensions)
	c.NormalizeExtensions = normalizeExtensions(c.NormalizeExtensions)
	c.UploadDir = strings.TrimSpace(c.UploadDir)
	c.AudioArtifactPath = strings.TrimSpace(c.AudioArtifactPath)
	c.TranscribeURL = strings.TrimRight(strings.TrimSpace(c.TranscribeURL), "/")
}

func normalizeExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" && !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}

// MaxUploadLimit caps max_upload_bytes (1 TiB) so size arithmetic stays far from int64 overflow.
const MaxUploadLimit int64 = 1 << 40

// Validate reports configuration that cannot run the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	} else if c.MaxUploadBytes > MaxUploadLimit {
		errs = append(errs, fmt.Errorf("max_upload_bytes must not exceed %d", MaxUploadLimit))
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("allowed_extensions must not be empty"))
	}
	for _, ext := range c.NormalizeExtensions {
		if !slices.Contains(c.AllowedExtensions, ext) {
			errs = append(errs, fmt.Errorf("normalize extension %q is not an allowed extension", ext))
		}
	}
	if c.AudioArtifactPath == "" {
		errs = append(errs, errors.New("audio_artifact_path is required"))
	}
	if !c.MockTranscribe && c.TranscribeURL == "" {
		errs = append(errs, errors.New("transcribe_url is required unless mock_transcribe is set"))
	}
	return errors.Join(errs...)
}

// Allowed reports whether ext (without dot, any case) may be uploaded.
func (c *Config) Allowed(ext string) bool {
	return slices.Contains(c.AllowedExtensions, strings.ToLower(ext))
}

// NeedsNormalization reports whether ext must be converted before processing.
func (c *Config) NeedsNormalization(ext string) bool {
	return slices.Contains(c.NormalizeExtensions, strings.ToLower(ext))
}

// AnalysisConfigured reports whether the external analysis service can be called.
func (c *Config) AnalysisConfigured() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

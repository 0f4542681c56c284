package config

const (
	defaultMaxUploadBytes = 100 * 1024 * 1024
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
)

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:                 "8080",
		Environment:          "local",
		LogLevel:             "info",
		UploadDir:            "uploads",
		MaxUploadBytes:       defaultMaxUploadBytes,
		AllowedExtensions:    []string{"mp4", "avi", "mov", "wmv", "mkv", "webm", "webp"},
		NormalizeExtensions:  []string{"webm"},
		AudioArtifactPath:    "output_audio.wav",
		FFmpegPath:           "ffmpeg",
		FFprobePath:          "ffprobe",
		GeminiEndpoint:       defaultGeminiEndpoint,
		GeminiTimeoutSeconds: 60,
	}
}

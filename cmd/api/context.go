package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"interview-insights-go/internal/command"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/gemini"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/media"
	"interview-insights-go/internal/normalizer"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/synthesis"
	"interview-insights-go/internal/transcription"
)

// appContext carries what every subcommand needs after flags are parsed.
type appContext struct {
	configPath *string
	cfg        *config.Config
	log        *logger.Logger
}

func (a *appContext) load() error {
	if a.cfg != nil {
		return nil
	}
	path := ""
	if a.configPath != nil {
		path = *a.configPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	// stdout is reserved for command output (JSON, tables).
	a.log = logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel, Output: os.Stderr})
	return nil
}

// orchestrator wires the real collaborators from configuration.
func (a *appContext) orchestrator() (*pipeline.Orchestrator, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	cfg := *a.cfg
	runner := command.ExecRunner{}
	entry := a.log.Entry

	collab := pipeline.Collaborators{
		Normalizer: normalizer.New(cfg.FFmpegPath, cfg.UploadDir, runner, entry),
		Extractor:  media.NewFFmpegExtractor(cfg.FFmpegPath, runner),
		Transcriber: transcription.New(transcription.Config{
			BaseURL: cfg.TranscribeURL,
			Mock:    cfg.MockTranscribe,
		}, nil, entry),
	}

	prober := media.NewProber(cfg.FFprobePath, runner)
	if cfg.AudioAnalyzerCmd != "" {
		au, err := media.NewCommandAnalyzer(cfg.AudioAnalyzerCmd, runner)
		if err != nil {
			return nil, fmt.Errorf("audio analyzer: %w", err)
		}
		collab.AudioAnalyzer = au
	} else {
		collab.AudioAnalyzer = media.NewAudioFeatures(prober)
	}
	if cfg.VideoAnalyzerCmd != "" {
		v, err := media.NewCommandAnalyzer(cfg.VideoAnalyzerCmd, runner)
		if err != nil {
			return nil, fmt.Errorf("video analyzer: %w", err)
		}
		collab.VideoAnalyzer = v
	} else {
		collab.VideoAnalyzer = media.NewVideoFeatures(prober)
	}

	var service synthesis.Service
	if cfg.AnalysisConfigured() {
		service = gemini.New(gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Endpoint: cfg.GeminiEndpoint,
			Timeout:  time.Duration(cfg.GeminiTimeoutSeconds) * time.Second,
		})
	} else {
		entry.Warn("GEMINI_API_KEY not set; synthesized analysis disabled")
	}
	collab.Synthesizer = synthesis.New(service, entry)

	return pipeline.New(cfg, collab, entry)
}

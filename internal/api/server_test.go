package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/normalizer"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/report"
	"interview-insights-go/internal/synthesis"
	"interview-insights-go/internal/types"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(abs)
	if err != nil {
		t.Fatalf("open schema: %v", err)
	}
	defer f.Close()
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(abs, f); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(abs)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func validate(t *testing.T, schema *jsonschema.Schema, raw []byte) {
	t.Helper()
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, raw)
	}
	if err := schema.Validate(payload); err != nil {
		t.Fatalf("response violates contract: %v\n%s", err, raw)
	}
}

type part struct {
	field, filename, content string
	file                     bool
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.file {
			fw, err := w.CreateFormFile(p.field, p.filename)
			if err != nil {
				t.Fatal(err)
			}
			io.WriteString(fw, p.content)
			continue
		}
		if err := w.WriteField(p.field, p.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func video(name string) part {
	return part{field: "video", filename: name, content: "media-bytes", file: true}
}

func question(q string) part {
	return part{field: "interview_question", content: q}
}

// Collaborator fakes for end-to-end runs through the real orchestrator.

type failingNormalizer struct{}

func (failingNormalizer) Normalize(ctx context.Context, src string) (types.NormalizedMedia, error) {
	return types.NormalizedMedia{}, errors.Join(normalizer.ErrConversionFailed, errors.New("exit status 1"))
}

type wavExtractor struct{}

func (wavExtractor) ExtractAudio(ctx context.Context, mediaPath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("wav"), 0o644)
}

type stubTranscriber struct{ err error }

func (s stubTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return "I shipped a payments service in Go.", s.err
}

type stubAnalyzers struct{}

func (stubAnalyzers) AnalyzeAudio(ctx context.Context, audioPath, transcript string) (types.Metrics, error) {
	return types.Metrics{"word_count": 7}, nil
}

func (stubAnalyzers) AnalyzeVideo(ctx context.Context, mediaPath string) (types.Metrics, error) {
	return types.Metrics{"resolution": "1280x720"}, nil
}

type stubService struct{}

func (stubService) Analyze(ctx context.Context, req synthesis.Request) (string, error) {
	return "```json\n{\"overall_score\": 7}\n```", nil
}

type env struct {
	cfg       config.Config
	service   synthesis.Service
	transcErr error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.UploadDir = filepath.Join(root, "uploads")
	cfg.AudioArtifactPath = filepath.Join(root, "output_audio.wav")
	cfg.MockTranscribe = true
	cfg.MaxUploadBytes = 1 << 20
	return &env{cfg: cfg, service: stubService{}}
}

func (e *env) server(t *testing.T) http.Handler {
	t.Helper()
	orch, err := pipeline.New(e.cfg, pipeline.Collaborators{
		Normalizer:    failingNormalizer{},
		Extractor:     wavExtractor{},
		Transcriber:   stubTranscriber{err: e.transcErr},
		AudioAnalyzer: stubAnalyzers{},
		VideoAnalyzer: stubAnalyzers{},
		Synthesizer:   synthesis.New(e.service, nil),
	}, logger.Discard().Entry)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(orch, e.cfg.MaxUploadBytes, logger.Discard()).Handler()
}

func post(t *testing.T, h http.Handler, target string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var body types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestProcessCompleteMatchesContract(t *testing.T) {
	schema := compileSchema(t, "result.schema.json")
	rec := post(t, newEnv(t).server(t), "/process", video("answer.mp4"), question("Tell me about a project"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	validate(t, schema, rec.Body.Bytes())

	var res map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res["status"] != "complete" || res["video_file"] != "answer.mp4" {
		t.Fatalf("result = %v", res)
	}
	if a, ok := res["synthesized_analysis"].(map[string]any); !ok || a["overall_score"] != 7.0 {
		t.Fatalf("synthesized_analysis = %v", res["synthesized_analysis"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestProcessUnconfiguredServiceMatchesContract(t *testing.T) {
	e := newEnv(t)
	e.service = nil
	rec := post(t, e.server(t), "/process", video("answer.mp4"), question("Why Go?"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	validate(t, compileSchema(t, "result.schema.json"), rec.Body.Bytes())
	if !strings.Contains(rec.Body.String(), synthesis.UnconfiguredMessage) {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestProcessFailuresMatchContract(t *testing.T) {
	schema := compileSchema(t, "error.schema.json")
	cases := []struct {
		name   string
		setup  func(*env)
		parts  []part
		status int
		kind   pipeline.Kind
	}{
		{"no video", nil, []part{question("q")}, http.StatusBadRequest, pipeline.KindValidation},
		{"no question", nil, []part{video("a.mp4")}, http.StatusBadRequest, pipeline.KindValidation},
		{"blank question", nil, []part{video("a.mp4"), question("   ")}, http.StatusBadRequest, pipeline.KindValidation},
		{"empty filename", nil, []part{{field: "video", content: "x"}, question("q")}, http.StatusBadRequest, pipeline.KindValidation},
		{"bad extension", nil, []part{video("notes.txt"), question("q")}, http.StatusBadRequest, pipeline.KindValidation},
		{"conversion", nil, []part{video("answer.webm"), question("q")}, http.StatusInternalServerError, pipeline.KindConversion},
		{"transcription", func(e *env) { e.transcErr = errors.New("service down") }, []part{video("a.mp4"), question("q")}, http.StatusInternalServerError, pipeline.KindTranscription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			if tc.setup != nil {
				tc.setup(e)
			}
			rec := post(t, e.server(t), "/process", tc.parts...)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.status, rec.Body)
			}
			validate(t, schema, rec.Body.Bytes())
			if got := decodeError(t, rec).Kind; got != string(tc.kind) {
				t.Fatalf("kind = %s, want %s", got, tc.kind)
			}
		})
	}
}

func TestProcessConversionFailureKeepsUpload(t *testing.T) {
	e := newEnv(t)
	rec := post(t, e.server(t), "/process", video("answer.webm"), question("q"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.VideoFile != "answer.webm" {
		t.Fatalf("video_file = %q", body.VideoFile)
	}
	entries, _ := os.ReadDir(e.cfg.UploadDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".webm") {
		t.Fatalf("uploads = %v", entries)
	}
	if _, err := os.Stat(e.cfg.AudioArtifactPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("audio artifact should not exist, stat err = %v", err)
	}
}

func TestProcessRejectsOversizedBody(t *testing.T) {
	e := newEnv(t)
	e.cfg.MaxUploadBytes = 16
	big := part{field: "video", filename: "big.mp4", content: strings.Repeat("x", 2<<20), file: true}
	rec := post(t, e.server(t), "/process", big, question("q"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	validate(t, compileSchema(t, "error.schema.json"), rec.Body.Bytes())
}

func TestProcessRejectsUploadOverLimitWithinOverhead(t *testing.T) {
	e := newEnv(t)
	e.cfg.MaxUploadBytes = 16
	rec := post(t, e.server(t), "/process", part{field: "video", filename: "a.mp4", content: strings.Repeat("x", 64), file: true}, question("q"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	entries, _ := os.ReadDir(e.cfg.UploadDir)
	if len(entries) != 0 {
		t.Fatalf("oversized upload left files: %v", entries)
	}
}

func TestProcessWithUnboundedLimit(t *testing.T) {
	e := newEnv(t)
	e.cfg.MaxUploadBytes = math.MaxInt64
	rec := post(t, e.server(t), "/process", video("answer.mp4"), question("q"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
}

func TestBodyLimitSaturates(t *testing.T) {
	if got := bodyLimit(16); got != 16+multipartOverhead {
		t.Fatalf("bodyLimit(16) = %d", got)
	}
	if got := bodyLimit(math.MaxInt64 - 1); got != math.MaxInt64 {
		t.Fatalf("bodyLimit near max = %d", got)
	}
}

func TestProcessXLSX(t *testing.T) {
	rec := post(t, newEnv(t).server(t), "/process?format=xlsx", video("answer.mp4"), question("q"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != report.ContentType {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatal("body is not a zip container")
	}
}

func TestRoutes(t *testing.T) {
	h := newEnv(t).server(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="interview_question"`) {
		t.Fatalf("form = %d %q", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id not echoed")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /process = %d", rec.Code)
	}
}

func TestErrorResponseForForeignError(t *testing.T) {
	status, body := errorResponse(errors.New("boom"))
	if status != http.StatusInternalServerError || body.Kind != string(pipeline.KindUnhandled) {
		t.Fatalf("got %d %+v", status, body)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/report"
	"interview-insights-go/internal/types"
)

// multipartOverhead is headroom for boundaries and the question field on top of the media limit.
const multipartOverhead = 1 << 20

// bodyLimit is the request body cap for a media limit, saturating instead of overflowing.
func bodyLimit(maxUpload int64) int64 {
	if maxUpload > math.MaxInt64-multipartOverhead {
		return math.MaxInt64
	}
	return maxUpload + multipartOverhead
}

// maxMemory is how much of a multipart body is buffered before spilling to temp files.
const maxMemory = 32 << 20

// Processor runs one submission.
type Processor interface {
	Run(ctx context.Context, sub pipeline.Submission) (types.PipelineResult, error)
}

type Server struct {
	proc           Processor
	maxUploadBytes int64
	log            *logger.Logger
}

func NewServer(proc Processor, maxUploadBytes int64, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New()
	}
	return &Server{proc: proc, maxUploadBytes: maxUploadBytes, log: log}
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /{$}", s.form)
	mux.HandleFunc("POST /process", s.process)
	return withRequestID(mux)
}

// withRequestID pins one request id for the whole request and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			r.Header.Set("X-Request-ID", uuid.NewString())
		}
		w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (s *Server) form(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, uploadForm)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process")
	reqLog.Info("process request received")

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(s.maxUploadBytes))
	sub, err := submissionFrom(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reqLog.WithField("limit", s.maxUploadBytes).Warn("request body too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, types.ErrorResponse{
				Error: "File exceeds the maximum upload size",
				Kind:  string(pipeline.KindValidation),
			}, reqLog)
			return
		}
		reqLog.WithError(err).Debug("unreadable form, treating as empty")
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if c, ok := sub.Content.(io.Closer); ok {
		defer c.Close()
	}

	start := time.Now()
	res, err := s.proc.Run(r.Context(), sub)
	reqLog = reqLog.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		status, body := errorResponse(err)
		reqLog.WithField("status", status).WithField("kind", body.Kind).WithError(err).Warn("process failed")
		writeJSON(w, status, body, reqLog)
		return
	}
	reqLog.WithField("video_file", res.VideoFile).Info("process finished")

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := report.Write(&buf, res); err != nil {
			reqLog.WithError(err).Error("render workbook failed")
			writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{
				Error: "Error processing video", Kind: string(pipeline.KindUnhandled), VideoFile: res.VideoFile,
			}, reqLog)
			return
		}
		w.Header().Set("Content-Type", report.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.VideoFile+".xlsx"))
		_, _ = buf.WriteTo(w)
		return
	}
	writeJSON(w, http.StatusOK, res, reqLog)
}

// submissionFrom maps the multipart form onto a Submission. A part named video
// with an empty filename arrives as a plain value; it becomes an unnamed upload.
func submissionFrom(r *http.Request) (pipeline.Submission, error) {
	var sub pipeline.Submission
	err := r.ParseMultipartForm(maxMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return sub, err
	}
	sub.Question = r.PostFormValue("interview_question")

	file, header, ferr := r.FormFile("video")
	switch {
	case ferr == nil:
		sub.Filename = header.Filename
		sub.Content = file
	case errors.Is(ferr, http.ErrMissingFile) && r.MultipartForm != nil:
		if _, ok := r.MultipartForm.Value["video"]; ok {
			sub.Content = bytes.NewReader(nil)
		}
	}
	return sub, nil
}

func errorResponse(err error) (int, types.ErrorResponse) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, types.ErrorResponse{
			Error: "Error processing video",
			Kind:  string(pipeline.KindUnhandled),
		}
	}
	body := types.ErrorResponse{Error: pe.Message, Kind: string(pe.Kind), VideoFile: pe.VideoFile}
	switch {
	case errors.Is(err, pipeline.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, body
	case pe.Kind == pipeline.KindValidation:
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

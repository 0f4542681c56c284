package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrNoTranscript means the service finished without producing text.
var ErrNoTranscript = errors.New("no transcript produced")

const mockTranscript = "MOCK TRANSCRIPT: I have five years of experience building backend services in Go."

type PublishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaId          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
		WordsCount       int    `json:"WordsCount"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type StatusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		Status               string `json:"Status"`
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
		WordsCount           int    `json:"WordsCount"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

// Config selects the transcription backend.
type Config struct {
	BaseURL      string
	Mock         bool
	PollInterval time.Duration
	MaxPolls     uint64
}

// Client publishes an audio file to the transcription service and waits for the text.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry
}

func New(cfg Config, httpClient *http.Client, log *logrus.Entry) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = 40
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{cfg: cfg, httpClient: httpClient, log: log.WithField("module", "transcription")}
}

// Transcribe returns the transcript for audioPath. Mock mode returns a fixed text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.cfg.Mock {
		return mockTranscript, nil
	}
	if c.cfg.BaseURL == "" {
		return "", errors.New("TRANSCRIBE_URL not set")
	}
	mediaID, existingURL, err := c.publish(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if existingURL != "" {
		return c.download(ctx, existingURL)
	}
	finalURL, err := c.poll(ctx, mediaID)
	if err != nil {
		return "", err
	}
	c.log.WithField("final_url", finalURL).Info("download final transcript")
	return c.download(ctx, finalURL)
}

func (c *Client) publish(ctx context.Context, audioPath string) (string, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", "", fmt.Errorf("read audio: %w", err)
	}
	_ = w.WriteField("callType", "interview")
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transcribe", &b)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var resp PublishResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", "", err
	}
	if resp.Code != http.StatusOK {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return "", resp.Data.TranscriptionURL, nil
	}
	if resp.Data.MediaId == "" {
		return "", "", fmt.Errorf("transcribe publish: %w: no media id", ErrNoTranscript)
	}
	return resp.Data.MediaId, "", nil
}

var errPending = errors.New("transcription pending")

// poll checks the job status on a fixed schedule. Only a queued/processing job is
// polled again; transport and job failures end the wait immediately.
func (c *Client) poll(ctx context.Context, mediaID string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/getstatus")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()

	var finalURL string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		var s StatusResponse
		if err := c.doJSON(req, &s); err != nil {
			return backoff.Permanent(err)
		}
		switch s.Data.Status {
		case "Success":
			if s.Data.TranscriptionTextURL == "" {
				return backoff.Permanent(fmt.Errorf("%w: empty transcript url", ErrNoTranscript))
			}
			finalURL = s.Data.TranscriptionTextURL
			return nil
		case "Failed":
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNoTranscript, s.Reason))
		default:
			return errPending
		}
	}
	schedule := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.PollInterval), c.cfg.MaxPolls), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.WithField("media_id", mediaID).WithField("next_poll", wait).Debug("transcription not ready")
	}
	if err := backoff.RetryNotify(op, schedule, notify); err != nil {
		if errors.Is(err, errPending) {
			return "", fmt.Errorf("transcription timeout after %d polls", c.cfg.MaxPolls)
		}
		return "", err
	}
	return finalURL, nil
}

func (c *Client) download(ctx context.Context, textURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed: %s", strings.TrimSpace(string(b)))
	}
	return string(b), nil
}

// doJSON performs one request and decodes the body; no retries.
func (c *Client) doJSON(req *http.Request, target interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %s", string(body))
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, string(body))
	}
	return nil
}

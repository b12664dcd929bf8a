package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/ports"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.5-flash"
	requestTimeout  = 5 * time.Minute
	defaultPoll     = 2 * time.Second
	defaultActivate = 10 * time.Minute
)

// File states reported by the Files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

var ErrFileFailed = errors.New("gemini: uploaded file failed processing")

// File is an uploaded media reference.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

// Client talks to the Gemini REST API. One Client is safe for concurrent use.
type Client struct {
	key     string
	model   string
	baseURL string
	http    *http.Client

	// PollInterval and ActivateTimeout bound WaitActive.
	PollInterval    time.Duration
	ActivateTimeout time.Duration
}

func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		key:             apiKey,
		model:           model,
		baseURL:         baseURL,
		http:            &http.Client{Timeout: requestTimeout},
		PollInterval:    defaultPoll,
		ActivateTimeout: defaultActivate,
	}
}

func (c *Client) Model() string { return c.model }

// SetRequestTimeout bounds each HTTP request, uploads included.
func (c *Client) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// Upload sends a local file through the resumable upload protocol.
func (c *Client) Upload(ctx context.Context, path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return File{}, fmt.Errorf("stat upload: %w", err)
	}
	mimeType := mimeTypeFor(path)

	meta, err := json.Marshal(map[string]any{"file": map[string]any{"display_name": filepath.Base(path)}})
	if err != nil {
		return File{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return File{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(info.Size(), 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	resp, err := c.do(req)
	if err != nil {
		return File{}, fmt.Errorf("start upload: %w", err)
	}
	resp.Body.Close()
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return File{}, errors.New("gemini: upload session URL missing")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return File{}, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	resp, err = c.do(req)
	if err != nil {
		return File{}, fmt.Errorf("upload bytes: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		File File `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return File{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" {
		return File{}, errors.New("gemini: upload returned no file name")
	}
	if out.File.MimeType == "" {
		out.File.MimeType = mimeType
	}
	return out.File, nil
}

func (c *Client) Get(ctx context.Context, name string) (File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return File{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()
	var f File
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode file: %w", err)
	}
	return f, nil
}

// WaitActive polls until the file leaves PROCESSING.
func (c *Client) WaitActive(ctx context.Context, f File) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ActivateTimeout)
	defer cancel()
	for {
		switch f.State {
		case StateActive:
			return f, nil
		case StateFailed:
			return f, fmt.Errorf("%w: %s", ErrFileFailed, f.Name)
		}
		select {
		case <-ctx.Done():
			return f, fmt.Errorf("gemini: waiting for %s: %w", f.Name, ctx.Err())
		case <-time.After(c.PollInterval):
		}
		next, err := c.Get(ctx, f.Name)
		if err != nil {
			return f, err
		}
		f = next
	}
}

func (c *Client) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

// Generate asks the model for a JSON answer about an optional file.
func (c *Client) Generate(ctx context.Context, file *File, prompt string) (string, error) {
	parts := make([]part, 0, 2)
	if file != nil {
		parts = append(parts, part{FileData: &fileData{MimeType: file.MimeType, FileURI: file.URI}})
	}
	parts = append(parts, part{Text: prompt})
	payload := map[string]any{
		"contents": []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"temperature":      0.4,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := c.baseURL + "/v1beta/models/" + c.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var raw struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if raw.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s)", raw.PromptFeedback.BlockReason)
	}
	if len(raw.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, p := range raw.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("gemini: empty content (finish=%s)", raw.Candidates[0].FinishReason)
	}
	return b.String(), nil
}

// withFile uploads path, waits for it to be usable, runs fn and deletes the
// remote copy afterwards.
func (c *Client) withFile(ctx context.Context, path string, fn func(File) (string, error)) (string, error) {
	f, err := c.Upload(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_ = c.Delete(delCtx, f.Name)
	}()
	f, err = c.WaitActive(ctx, f)
	if err != nil {
		return "", err
	}
	return fn(f)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("x-goog-api-key", c.key)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.New(redactSecrets(err.Error(), c.key))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := truncate(redactSecrets(string(rb), c.key), 400)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ports.RateLimitError{
			Provider: "gemini",
			Wait:     parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:     msg,
		}
	}
	return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "video/mp4"
}

var keyParamRE = regexp.MustCompile(`(?i)([?&]key=)[^&\s"]+`)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[REDACTED]")
	}
	return keyParamRE.ReplaceAllString(s, "${1}[REDACTED]")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

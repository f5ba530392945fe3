package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WhisperHTTP posts WAV files to a whisper.cpp server's /inference endpoint.
type WhisperHTTP struct {
	serverURL string
	language  string
	client    *http.Client
}

// NewWhisperHTTP requires Options.ServerURL. A zero Timeout means 30 s.
func NewWhisperHTTP(o Options) (*WhisperHTTP, error) {
	if o.ServerURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	client := o.HTTPClient
	if client == nil {
		timeout := o.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WhisperHTTP{
		serverURL: strings.TrimRight(o.ServerURL, "/"),
		language:  o.Language,
		client:    client,
	}, nil
}

func (w *WhisperHTTP) Transcribe(ctx context.Context, wavPath string) (string, error) {
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("whisper: read %q: %w", wavPath, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if w.language != "" {
		if err := mw.WriteField("language", w.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

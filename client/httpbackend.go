package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gin-contrib/sse"
	"github.com/meghashyamc/driveindex/config"
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/progress"
)

const statusBufferSize = 64

var errStreamEnded = errors.New("progress stream ended")

// HTTPBackend talks to the indexing backend's HTTP API.
type HTTPBackend struct {
	logger           logger.Logger
	baseURL          string
	httpClient       *http.Client
	streamClient     *http.Client
	reconnectTimeout time.Duration
}

func NewHTTPBackend(logger logger.Logger, cfg *config.Config) *HTTPBackend {
	return &HTTPBackend{
		logger:           logger,
		baseURL:          cfg.GetServerURL(),
		httpClient:       &http.Client{Timeout: cfg.GetRequestTimeout()},
		streamClient:     &http.Client{},
		reconnectTimeout: cfg.GetReconnectTimeout(),
	}
}

type completionResponse struct {
	Complete bool `json:"complete"`
}

type entriesResponse struct {
	Entries []db.FileRecord `json:"entries"`
}

type indexRequest struct {
	Drives []string `json:"drives,omitempty"`
}

type indexResponse struct {
	ID string `json:"id"`
}

func (b *HTTPBackend) IsIndexingComplete(ctx context.Context) (bool, error) {
	var response completionResponse
	if err := b.do(ctx, http.MethodGet, "/index/complete", nil, http.StatusOK, &response); err != nil {
		return false, err
	}
	return response.Complete, nil
}

func (b *HTTPBackend) GetAllIndexEntries(ctx context.Context) ([]db.FileRecord, error) {
	var response entriesResponse
	if err := b.do(ctx, http.MethodGet, "/index/entries", nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	if response.Entries == nil {
		return []db.FileRecord{}, nil
	}
	return response.Entries, nil
}

// StartIndexing asks the backend to start a run over drives, or over its
// configured drives when none are given, and returns the run ID.
func (b *HTTPBackend) StartIndexing(ctx context.Context, drives []string) (string, error) {
	var response indexResponse
	if err := b.do(ctx, http.MethodPost, "/index", indexRequest{Drives: drives}, http.StatusAccepted, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

// SubscribeProgress opens the progress event stream. A dropped stream is
// reopened with exponential backoff until the reconnect timeout elapses, after
// which the channel is closed. Unsubscribing closes the stream and the channel.
func (b *HTTPBackend) SubscribeProgress(ctx context.Context) (<-chan db.IndexingStatus, func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	body, err := b.openStream(streamCtx)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	statusC := make(chan db.IndexingStatus, statusBufferSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(statusC)
		b.stream(streamCtx, body, statusC)
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}

	return statusC, unsubscribe, nil
}

func (b *HTTPBackend) stream(ctx context.Context, body io.ReadCloser, statusC chan<- db.IndexingStatus) {
	for {
		err := b.readEvents(ctx, body, statusC)
		body.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("progress stream dropped, reconnecting", "err", err.Error())

		body, err = b.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Error("giving up on progress stream", "err", err.Error())
			}
			return
		}
		b.logger.Info("progress stream reconnected")
	}
}

func (b *HTTPBackend) reconnect(ctx context.Context) (io.ReadCloser, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = b.reconnectTimeout

	var body io.ReadCloser
	operation := func() error {
		var err error
		body, err = b.openStream(ctx)
		return err
	}
	notify := func(err error, next time.Duration) {
		b.logger.Warn("could not reopen progress stream", "err", err.Error(), "retry_in", next.String())
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(expBackoff, ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to reconnect to progress stream: %w", err)
	}
	return body, nil
}

func (b *HTTPBackend) openStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/index/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to open progress stream: unexpected status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// readEvents forwards every indexing status on body until the stream ends.
func (b *HTTPBackend) readEvents(ctx context.Context, body io.Reader, statusC chan<- db.IndexingStatus) error {
	scanner := bufio.NewScanner(body)
	scanner.Split(scanEvents)

	for scanner.Scan() {
		events, err := sse.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			return fmt.Errorf("failed to decode progress event: %w", err)
		}

		for _, event := range events {
			if event.Event != progress.EventIndexingStatus {
				continue
			}
			status, err := decodeStatus(event.Data)
			if err != nil {
				b.logger.Warn("skipping malformed indexing status", "err", err.Error())
				continue
			}

			select {
			case statusC <- status:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamEnded
}

// scanEvents splits a server-sent event stream into frames, each ending with
// its blank line.
func scanEvents(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i+2], nil
	}
	if atEOF {
		// A trailing frame without its blank line is incomplete.
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func decodeStatus(data any) (db.IndexingStatus, error) {
	var raw []byte
	switch value := data.(type) {
	case string:
		raw = []byte(value)
	case []byte:
		raw = value
	default:
		return db.IndexingStatus{}, fmt.Errorf("unexpected event data type %T", data)
	}

	var status db.IndexingStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return db.IndexingStatus{}, fmt.Errorf("failed to unmarshal indexing status: %w", err)
	}
	return status, nil
}

func (b *HTTPBackend) do(ctx context.Context, method string, path string, requestBody any, expectedStatus int, data any) error {
	var body io.Reader
	if requestBody != nil {
		payload, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request to %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", path, err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []string        `json:"errors"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode != expectedStatus {
		if decodeErr == nil && len(envelope.Errors) > 0 {
			return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, strings.Join(envelope.Errors, "; "))
		}
		return fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, decodeErr)
	}

	if err := json.Unmarshal(envelope.Data, data); err != nil {
		return fmt.Errorf("failed to unmarshal response from %s: %w", path, err)
	}
	return nil
}

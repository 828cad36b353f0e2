package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Redacted replaces credentials in the API log.
const Redacted = "[REDACTED]"

// Headers and query parameters that carry credentials.
var (
	sensitiveHeaders = []string{"Authorization", "X-Goog-Api-Key"}
	sensitiveParams  = []string{"key"}
)

// LoggingTransport wraps an http.RoundTripper and appends every request and
// response to a log file, with credentials redacted.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport opens logFilePath for appending and wraps transport
// (http.DefaultTransport when nil).
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.writer.Flush()

	startTime := time.Now()
	if reqDump, err := httputil.DumpRequestOut(redactRequest(req), true); err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
	} else {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), reqDump))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)
	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (%s, Duration: %v) ---\n%s", time.Now().Format(time.RFC3339), duration, err))
		return resp, err
	}

	header, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		header = []byte("Status: " + resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		t.writeLog(fmt.Sprintf("--- Response Headers (%s, Duration: %v, Type: %s) ---\n%s\n(Body not logged)", time.Now().Format(time.RFC3339), duration, contentType, header))
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	// The caller still needs the body.
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		log.WithError(readErr).Error("Failed to read response body for logging")
		t.writeLog(fmt.Sprintf("--- Response Headers (%s, Duration: %v) ---\n%s\n(Body read failed)", time.Now().Format(time.RFC3339), duration, header))
		return resp, nil
	}
	t.writeLog(fmt.Sprintf("--- Response Headers (%s, Duration: %v) ---\n%s\n--- Response Body (%s) ---\n%s", time.Now().Format(time.RFC3339), duration, header, contentType, body))
	return resp, nil
}

// redactRequest returns a copy of req whose credentials are masked. req keeps
// a readable body.
func redactRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			log.WithError(err).Warn("Failed to read API request body for logging")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		clone.Body = io.NopCloser(bytes.NewReader(body))
	}
	for _, h := range sensitiveHeaders {
		if clone.Header.Get(h) != "" {
			clone.Header.Set(h, Redacted)
		}
	}
	if clone.URL != nil {
		q := clone.URL.Query()
		changed := false
		for _, p := range sensitiveParams {
			if q.Has(p) {
				q.Set(p, Redacted)
				changed = true
			}
		}
		if changed {
			clone.URL.RawQuery = q.Encode()
		}
	}
	return clone
}

func (t *LoggingTransport) writeLog(entry string) {
	if _, err := t.writer.WriteString(entry + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
	}
}

// Close flushes and closes the log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingTransport_RedactsCredentials(t *testing.T) {
	var gotKey, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(nil, logPath)
	require.NoError(t, err)
	client := &http.Client{Transport: transport}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1beta/models/m:generateContent?key=secret-query", strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("X-Goog-Api-Key", "secret-header")

	resp, err := client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, transport.Close())

	assert.Equal(t, `{"ok":true}`, string(body), "caller still reads the response body")
	assert.Equal(t, "secret-header", gotKey, "the real request keeps its credentials")
	assert.Equal(t, `{"prompt":"hi"}`, gotBody, "the real request keeps its body")

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(logged), "secret-header")
	assert.NotContains(t, string(logged), "secret-query")
	assert.Contains(t, string(logged), "--- Request")
	assert.Contains(t, string(logged), `{"prompt":"hi"}`)
	assert.Contains(t, string(logged), `{"ok":true}`)
}

func TestLoggingTransport_NonJSONBodyNotLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain payload"))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(http.DefaultTransport, logPath)
	require.NoError(t, err)

	resp, err := (&http.Client{Transport: transport}).Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, transport.Close())

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "(Body not logged)")
	assert.NotContains(t, string(logged), "plain payload")
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *OllamaDriver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaDriver(enrichment.Config{Endpoint: srv.URL + "/api/", Model: "llama3.1:8b"})
}

func TestOllamaDriver_Generate(t *testing.T) {
	var got ollamaRequest
	d := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"response":"  Use autoscaling groups.  ","done":true}`))
	})

	out, err := d.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "Use autoscaling groups.", out)
	assert.Equal(t, "llama3.1:8b", got.Model)
	assert.Equal(t, "analyze this", got.Prompt)
	assert.False(t, got.Stream)
}

func TestOllamaDriver_FailureClasses(t *testing.T) {
	tests := []struct {
		handler http.HandlerFunc
		name    string
		want    enrichment.FailureClass
	}{
		{
			name: "missing response field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"done":true}`))
			},
			want: enrichment.FailureNoSuggestion,
		},
		{
			name: "empty response field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"response":"   "}`))
			},
			want: enrichment.FailureNoSuggestion,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"response":`))
			},
			want: enrichment.FailureUnparsable,
		},
		{
			name: "non json content type",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			want: enrichment.FailureUnparsable,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
			want: enrichment.FailureTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newOllamaServer(t, tt.handler)
			_, err := d.Generate(context.Background(), "prompt")
			require.Error(t, err)
			assert.Equal(t, tt.want, enrichment.ClassOf(err))
		})
	}
}

func TestOllamaDriver_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewOllamaDriver(enrichment.Config{Endpoint: url + "/api", Model: "m"})
	_, err := d.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, enrichment.FailureTransport, enrichment.ClassOf(err))
	assert.Error(t, d.HealthCheck(context.Background()))
}

func TestOllamaDriver_HealthCheck(t *testing.T) {
	d := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	assert.NoError(t, d.HealthCheck(context.Background()))
	assert.Equal(t, DriverOllama, d.GetCapabilities().Driver)
}

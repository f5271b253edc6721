package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joshsymonds/warlens/internal/enrichment"
)

// DriverOllama is the registry name of the native Ollama driver.
const DriverOllama = "ollama"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// OllamaDriver talks to Ollama's native /api/generate endpoint.
type OllamaDriver struct {
	client   *http.Client
	endpoint string
	model    string
}

// NewOllamaDriver creates a driver for the given endpoint, e.g.
// http://localhost:11434/api.
func NewOllamaDriver(cfg enrichment.Config) *OllamaDriver {
	return &OllamaDriver{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
}

// Generate implements Driver.
func (d *OllamaDriver) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaRequest{Model: d.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", enrichment.Transport(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", enrichment.Transport(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", enrichment.Transport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", enrichment.Transport(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", enrichment.Transport(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return "", enrichment.Unparsable(fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")), nil)
	}

	var decoded ollamaResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", enrichment.Unparsable(string(body), err)
	}

	if decoded.Response == nil {
		return "", enrichment.NoSuggestion("response field missing")
	}
	suggestion := strings.TrimSpace(*decoded.Response)
	if suggestion == "" {
		return "", enrichment.NoSuggestion("response field empty")
	}

	return suggestion, nil
}

// GetCapabilities implements Driver.
func (d *OllamaDriver) GetCapabilities() Capabilities {
	return Capabilities{Driver: DriverOllama, ModelName: d.model, Endpoint: d.endpoint}
}

// HealthCheck implements Driver by listing the locally available models.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/tags", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", d.endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

func init() {
	DefaultRegistry.Register(DriverOllama, func(cfg enrichment.Config) (Driver, error) {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("ollama driver requires an endpoint")
		}
		return NewOllamaDriver(cfg), nil
	})
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/sashabaranov/go-openai"
)

// DriverOpenAI is the registry name of the OpenAI-compatible driver. It also
// reaches Ollama through its /v1 compatibility endpoint.
const DriverOpenAI = "openai"

const defaultOpenAIModel = "gpt-4o-mini"

// chatClient is the subset of the go-openai client the driver uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIDriver generates suggestions through a chat completion API.
type OpenAIDriver struct {
	client   chatClient
	model    string
	endpoint string
}

// NewOpenAIDriver creates a driver. An empty endpoint uses the public API.
func NewOpenAIDriver(cfg enrichment.Config) *OpenAIDriver {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		conf.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIDriver{
		client:   openai.NewClientWithConfig(conf),
		model:    model,
		endpoint: conf.BaseURL,
	}
}

// Generate implements Driver.
func (d *OpenAIDriver) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", enrichment.Transport(fmt.Errorf("api error (status %d): %w", apiErr.HTTPStatusCode, err))
		}
		return "", enrichment.Transport(err)
	}

	if len(resp.Choices) == 0 {
		return "", enrichment.NoSuggestion("response contained no choices")
	}
	suggestion := strings.TrimSpace(resp.Choices[0].Message.Content)
	if suggestion == "" {
		return "", enrichment.NoSuggestion("response content empty")
	}
	return suggestion, nil
}

// GetCapabilities implements Driver.
func (d *OpenAIDriver) GetCapabilities() Capabilities {
	return Capabilities{Driver: DriverOpenAI, ModelName: d.model, Endpoint: d.endpoint}
}

// HealthCheck implements Driver.
func (d *OpenAIDriver) HealthCheck(ctx context.Context) error {
	if _, err := d.client.ListModels(ctx); err != nil {
		return fmt.Errorf("listing models at %s: %w", d.endpoint, err)
	}
	return nil
}

func init() {
	DefaultRegistry.Register(DriverOpenAI, func(cfg enrichment.Config) (Driver, error) {
		return NewOpenAIDriver(cfg), nil
	})
}

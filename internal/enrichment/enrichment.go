// Package enrichment defines the contract between the finding pipeline and
// the text-generation service that produces remediation suggestions.
package enrichment

import (
	"time"

	"github.com/joshsymonds/warlens/internal/models"
)

// Config contains driver settings for the enrichment service.
type Config struct {
	Driver     string        `yaml:"driver"`
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	APIKey     string        `yaml:"-"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Request carries the descriptive fields of one finding to the service.
type Request struct {
	Pillar           string
	Question         string
	Severity         string
	CheckTitle       string
	CheckDescription string
	ResourceType     string
	AdditionalInfo   string
	// Refresh asks the service for a fresh answer instead of a repeat.
	Refresh bool
}

// RequestFromFinding builds a request for a first-time enrichment.
func RequestFromFinding(f models.Finding) Request {
	return Request{
		Pillar:           f.Pillar,
		Question:         f.Question,
		Severity:         f.Severity,
		CheckTitle:       f.CheckTitle,
		CheckDescription: f.CheckDescription,
		ResourceType:     f.ResourceType,
	}
}

// RequestFromRecord builds a refresh request from a cached snapshot.
func RequestFromRecord(r models.CacheRecord, additionalInfo string) Request {
	return Request{
		Pillar:           r.Pillar,
		Question:         r.Question,
		Severity:         r.Severity,
		CheckTitle:       r.CheckTitle,
		CheckDescription: r.CheckDescription,
		ResourceType:     r.ResourceType,
		AdditionalInfo:   additionalInfo,
		Refresh:          true,
	}
}

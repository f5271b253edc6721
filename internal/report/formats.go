// Package report renders the combined cross-run report for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// Format renders a combined report.
type Format interface {
	// Render writes the report to w.
	Render(w io.Writer, report *models.CombinedReport) error
	// Name returns the format identifier (e.g., "insights", "json").
	Name() string
	// Description returns a human-readable description of the format.
	Description() string
}

// FormatFactory creates instances of report formats.
type FormatFactory func(log logger.Logger) (Format, error)

var (
	formatRegistry = make(map[string]FormatFactory)
	registryMutex  sync.RWMutex
)

// RegisterFormat registers a new report format factory.
func RegisterFormat(name string, factory FormatFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if factory == nil {
		panic(fmt.Sprintf("report: RegisterFormat factory is nil for format %q", name))
	}
	if _, dup := formatRegistry[name]; dup {
		panic(fmt.Sprintf("report: RegisterFormat called twice for format %q", name))
	}
	formatRegistry[name] = factory
}

// GetFormat creates an instance of the specified report format.
func GetFormat(name string, log logger.Logger) (Format, error) {
	registryMutex.RLock()
	factory, exists := formatRegistry[name]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown report format: %s", name)
	}
	return factory(log)
}

// ListFormats returns the registered format names, sorted.
func ListFormats() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	formats := make([]string, 0, len(formatRegistry))
	for name := range formatRegistry {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

// jsonFormat writes the report as indented JSON.
type jsonFormat struct{}

func (jsonFormat) Render(w io.Writer, report *models.CombinedReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(report)
}

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) Description() string {
	return "Combined report as JSON, identical to the report file"
}

func init() {
	RegisterFormat("insights", func(log logger.Logger) (Format, error) {
		return NewInsights(log), nil
	})
	RegisterFormat("json", func(logger.Logger) (Format, error) {
		return jsonFormat{}, nil
	})
}

package ingest

import (
	"fmt"
	"strings"

	"github.com/morphdex/morphdex/pkg/config"
)

const maxFieldNameLength = 256

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIndexRequest checks size bounds on the field map. An empty field
// map is legal; the engine indexes it as a document with no terms.
func ValidateIndexRequest(req *IndexRequest, cfg config.EngineConfig) error {
	errs := make(map[string]string)

	if len(req.Fields) > cfg.MaxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields allowed", cfg.MaxFields)
	}
	for name, value := range req.Fields {
		if name == "" {
			errs["fields"] = "field names must not be empty"
			continue
		}
		if len(name) > maxFieldNameLength {
			errs[name] = fmt.Sprintf("field name must be at most %d characters", maxFieldNameLength)
			continue
		}
		if len(value) > cfg.MaxFieldBytes {
			errs[name] = fmt.Sprintf("field value must be at most %d bytes", cfg.MaxFieldBytes)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

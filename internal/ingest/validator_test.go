package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/morphdex/morphdex/pkg/config"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Morphology:    "rules",
		MaxFieldBytes: 1024,
		MaxFields:     4,
	}
}

func TestValidateIndexRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     IndexRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  IndexRequest{Fields: map[string]string{"Sheldon": "Our whole universe"}},
		},
		{
			name: "empty fields legal",
			req:  IndexRequest{Fields: map[string]string{}},
		},
		{
			name: "nil fields legal",
			req:  IndexRequest{},
		},
		{
			name: "too many fields",
			req: IndexRequest{Fields: map[string]string{
				"a": "1", "b": "2", "c": "3", "d": "4", "e": "5",
			}},
			wantErr: true,
		},
		{
			name:    "empty field name",
			req:     IndexRequest{Fields: map[string]string{"": "text"}},
			wantErr: true,
		},
		{
			name:    "field name too long",
			req:     IndexRequest{Fields: map[string]string{strings.Repeat("x", 300): "text"}},
			wantErr: true,
		},
		{
			name:    "field value too large",
			req:     IndexRequest{Fields: map[string]string{"line": strings.Repeat("word ", 300)}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIndexRequest(&tt.req, testEngineConfig())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIndexRequest error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) || len(verr.Fields) == 0 {
					t.Errorf("error %v is not a populated ValidationError", err)
				}
			}
		})
	}
}

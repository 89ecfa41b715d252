package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fleveque/tongue-service/internal/model"
)

// photoResult is one line of `analyze` output.
type photoResult struct {
	Photo     string                `json:"photo" yaml:"photo"`
	RequestID string                `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	Outcome   string                `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Result    *model.AnalysisRecord `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string                `json:"error,omitempty" yaml:"error,omitempty"`
}

type encoder interface {
	Encode(v any) error
}

// yamlEncoder writes each value as its own document, separated by "---".
type yamlEncoder struct {
	w    io.Writer
	docs int
}

func (e *yamlEncoder) Encode(v any) error {
	if e.docs > 0 {
		if _, err := io.WriteString(e.w, "---\n"); err != nil {
			return err
		}
	}
	e.docs++

	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newEncoder(format string, w io.Writer) (encoder, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc, nil
	case "yaml":
		return &yamlEncoder{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

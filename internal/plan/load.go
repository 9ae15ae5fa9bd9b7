package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an on-disk plan encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	// FormatBase64 is a text file holding a share string.
	FormatBase64
)

// FormatFromPath picks a format from the file extension. ok is false for
// extensions that are not plan files.
func FormatFromPath(path string) (f Format, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".txt", ".b64":
		return FormatBase64, true
	}
	return 0, false
}

// Parse decodes and validates a plan document. A syntax error is returned as
// an error; structural and value problems are reported in the Report, and
// the plan is nil whenever the report has errors.
func Parse(data []byte, f Format) (*Plan, Report, error) {
	if f == FormatBase64 {
		p, err := Decode(string(data))
		if err != nil {
			return nil, Report{}, err
		}
		return p, Validate(p), nil
	}

	var doc map[string]any
	if err := unmarshal(data, f, &doc); err != nil {
		return nil, Report{}, fmt.Errorf("invalid plan format: %w", err)
	}
	if doc == nil {
		return nil, Report{Errors: []string{"plan must be a valid object"}}, nil
	}

	rep := validateDocument(doc)
	if !rep.Valid() {
		return nil, rep, nil
	}

	var p Plan
	if err := unmarshal(data, f, &p); err != nil {
		return nil, rep, fmt.Errorf("invalid plan format: %w", err)
	}
	rep.merge(Validate(&p))
	if !rep.Valid() {
		return nil, rep, nil
	}
	return &p, rep, nil
}

func unmarshal(data []byte, f Format, v any) error {
	if f == FormatYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// Load reads a plan file. Plans without an id take the file name (minus
// extension) as their id. An invalid plan is an error; warnings are
// returned alongside a usable plan.
func Load(path string) (*Plan, Report, error) {
	f, ok := FormatFromPath(path)
	if !ok {
		return nil, Report{}, fmt.Errorf("load plan %s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("load plan: %w", err)
	}
	p, rep, err := Parse(data, f)
	if err != nil {
		return nil, rep, fmt.Errorf("load plan %s: %w", path, err)
	}
	if p == nil {
		return nil, rep, fmt.Errorf("load plan %s: %w", path, rep.Err())
	}
	if p.ID == "" {
		base := filepath.Base(path)
		p.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if p.Name == "" {
		p.Name = p.DisplayName()
	}
	return p, rep, nil
}

package plan

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidBase64 is returned by Decode when the share string is not base64.
var ErrInvalidBase64 = errors.New("invalid base64 string")

// Decode parses a shared plan string: base64 of the plan's JSON. Whitespace
// anywhere in the input is ignored so strings pasted across lines still
// decode.
func Decode(s string) (*Plan, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Some exporters drop the padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
	}

	p, rep, err := Parse(raw, FormatJSON)
	if err != nil {
		return nil, err
	}
	if !rep.Valid() {
		return nil, rep.Err()
	}
	return p, nil
}

// Encode returns the share string for p.
func Encode(p *Plan) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

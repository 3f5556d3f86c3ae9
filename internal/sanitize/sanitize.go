// Package sanitize recovers a JSON array from free-form model output.
//
// Everything between the first '[' and the last ']' is treated as the array
// body. A response holding several unrelated bracket pairs is sliced across
// all of them and usually fails to parse.
package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/ppiankov/newsplaces/internal/model"
)

// Sanitizer turns response text into array elements
type Sanitizer struct {
	// Repair runs jsonrepair once over a candidate that failed to parse
	Repair bool
}

// Sanitize is the strict sanitizer without repair
func Sanitize(text string) ([]any, error) {
	return Sanitizer{}.Sanitize(text)
}

// Sanitize returns the elements of the JSON array found in text, or a
// *model.MalformedExtractionError carrying the raw text.
func (s Sanitizer) Sanitize(text string) ([]any, error) {
	candidate, err := Candidate(text)
	if err != nil {
		return nil, &model.MalformedExtractionError{Raw: text, Cause: err}
	}

	items, err := decodeArray(candidate)
	if err == nil {
		return items, nil
	}
	if !s.Repair {
		return nil, &model.MalformedExtractionError{Raw: text, Cause: err}
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return nil, &model.MalformedExtractionError{Raw: text, Cause: fmt.Errorf("%w (repair: %v)", err, repairErr)}
	}
	items, err = decodeArray(repaired)
	if err != nil {
		return nil, &model.MalformedExtractionError{Raw: text, Cause: fmt.Errorf("repaired: %w", err)}
	}
	return items, nil
}

// Candidate returns the string that will be parsed as the array.
//
// A trimmed text already shaped like "[...]" is returned unchanged. Otherwise
// the content strictly between the first '[' and the last ']' is trimmed and
// re-wrapped in brackets. A response with no bracket pair at all is an error,
// never an empty array.
func Candidate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.New("empty response")
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return trimmed, nil
	}

	open := strings.Index(trimmed, "[")
	if open < 0 {
		return "", errors.New("no '[' in response")
	}
	rest := trimmed[open+1:]
	end := strings.LastIndex(rest, "]")
	if end < 0 {
		return "", errors.New("no ']' after first '[' in response")
	}
	return "[" + strings.TrimSpace(rest[:end]) + "]", nil
}

// decodeArray parses s as a JSON array of arbitrary values
func decodeArray(s string) ([]any, error) {
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	if items == nil {
		// "null" decodes into a nil slice without error
		return nil, errors.New("decode array: not an array")
	}
	return items, nil
}

package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponses is returned by ParseResponses when a recognised
// instrument's answers are not an object of integer item values.
var ErrMalformedResponses = errors.New("assessment: malformed responses")

// ParseResponses decodes a raw responses object. Recognised instruments
// (phq9, gad7) must be objects of integer item values. Other keys are kept
// with no items so the map stays non-empty, and Score ignores them.
func ParseResponses(raw map[string]json.RawMessage) (map[string]map[string]int, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[string]map[string]int, len(raw))
	for key, value := range raw {
		if _, ok := lookup(key); !ok {
			out[key] = nil
			continue
		}
		items, err := parseItems(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponses, key, err)
		}
		out[key] = items
	}
	return out, nil
}

func parseItems(value json.RawMessage) (map[string]int, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return nil, errors.New("answers are required")
	}
	var items map[string]int
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, err
	}
	return items, nil
}

package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// marshalConversions stores the per-kind conversion counts as canonical JSON
// keyed by kind name, so equal counts always produce equal text.
func marshalConversions(byKind map[string]int) (string, error) {
	obj := make(map[string]any, len(byKind))
	for k, n := range byKind {
		obj[k] = n
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal conversions: %w", err)
	}
	return string(data), nil
}

func unmarshalConversions(data string) (map[string]int, error) {
	out := map[string]int{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal conversions: %w", err)
	}
	return out, nil
}

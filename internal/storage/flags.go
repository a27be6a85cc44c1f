package storage

import (
	"encoding/json"
	"fmt"
	"sort"
)

// decodeFlags reads a JSONB object of feature flags. Boolean values are
// returned in flags; the keys of any other values are returned in ignored so
// the caller decides what an unusable value means.
func decodeFlags(data []byte) (flags map[string]bool, ignored []string, err error) {
	if len(data) == 0 {
		return nil, nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal feature flags: %w", err)
	}
	if raw == nil {
		return nil, nil, nil
	}

	flags = make(map[string]bool, len(raw))
	for name, value := range raw {
		if b, ok := value.(bool); ok {
			flags[name] = b
			continue
		}
		ignored = append(ignored, name)
	}
	sort.Strings(ignored)
	return flags, ignored, nil
}

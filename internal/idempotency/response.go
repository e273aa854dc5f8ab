package idempotency

import (
	"encoding/json"
	"fmt"
)

// HeaderPair is one response header as an ordered name/value pair. The
// value is kept as raw bytes so multi-valued and non-UTF-8 headers
// replay exactly as they were first produced.
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// StoredResponse is the cached HTTP response replayed for a retried
// idempotency key: status, headers, and body, byte for byte.
type StoredResponse struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

func encodeHeaders(headers []HeaderPair) ([]byte, error) {
	if headers == nil {
		headers = []HeaderPair{}
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response headers: %w", err)
	}
	return encoded, nil
}

func decodeHeaders(raw []byte) ([]HeaderPair, error) {
	if len(raw) == 0 {
		return []HeaderPair{}, nil
	}
	var headers []HeaderPair
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil, fmt.Errorf("failed to decode response headers: %w", err)
	}
	if headers == nil {
		headers = []HeaderPair{}
	}
	return headers, nil
}

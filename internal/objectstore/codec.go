package objectstore

import (
	"encoding/json"
	"fmt"
)

// EncodeJSON marshals v to an in-memory buffer with the content type the
// adapter's Put expects. Callers never see a streaming seam.
func EncodeJSON(v any) ([]byte, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	return body, nil
}

// DecodeJSON unmarshals body into v.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

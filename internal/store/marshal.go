package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/crawlplan/internal/ir"
)

// marshalDoc converts a record to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal records store identical text.
func marshalDoc(record ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(record)
	if err != nil {
		return "", fmt.Errorf("marshal doc: %w", err)
	}
	return string(data), nil
}

// unmarshalDoc parses stored JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which properly handles large integers via json.Number
// to avoid float64 precision loss for values > 2^53.
func unmarshalDoc(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal doc: %w", err)
	}
	return obj, nil
}

package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// Unmarshal JSON to generic struct
func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}

// ReadJSONFile loads a JSON document from path into a generic struct.
func ReadJSONFile[T any](path string, output *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, output); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteJSONFile persists a struct as pretty-printed JSON at path.
func WriteJSONFile[T any](path string, input T) error {
	jsonData, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

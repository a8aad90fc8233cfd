package yaml

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// Marshal renders v as YAML. Values are first encoded with their JSON tags so
// that API types print with the same field names as on the wire.
func Marshal(v any) ([]byte, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding value: %w", err)
	}
	return JSONToYAML(jsonBytes)
}

// Encode writes v to w as a YAML document.
func Encode(w io.Writer, v any) error {
	out, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// JSONToYAML converts JSON bytes to YAML bytes
func JSONToYAML(jsonBytes []byte) ([]byte, error) {
	var obj any
	if err := json.Unmarshal(jsonBytes, &obj); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	yamlBytes, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("error converting to YAML: %w", err)
	}

	return yamlBytes, nil
}

// Unmarshal parses YAML bytes into the provided object.
func Unmarshal(yamlBytes []byte, obj any) error {
	if err := yaml.Unmarshal(yamlBytes, obj); err != nil {
		return fmt.Errorf("error parsing YAML: %w", err)
	}
	return nil
}

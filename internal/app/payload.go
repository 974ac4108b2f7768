package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPayload reads a request payload from a YAML or JSON file. The decoded
// value is sent to the backend as is.
func LoadPayload(path string) (any, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("payload file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return parsePayload(raw, filepath.Ext(path))
}

func parsePayload(data []byte, ext string) (any, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".json", fn: unmarshalJSONNumbers},
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out map[string]any
		if err := d.fn(data, &out); err == nil && out != nil {
			return out, nil
		}
	}
	return nil, errors.New("payload format not recognized (expected a YAML or JSON object)")
}

// unmarshalJSONNumbers keeps JSON numbers as json.Number so integers beyond
// float64 precision are re-encoded exactly.
func unmarshalJSONNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

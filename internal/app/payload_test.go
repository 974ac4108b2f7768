package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPayloadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.yaml")
	content := `
video_path: /data/run1
filename: 0001.jpg
frame_idx: 3
obj_ids: [1, 2]
bboxes:
  - [0, 0, 10, 10]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	payload, err := LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload: %v", err)
	}
	m := payload.(map[string]any)
	if m["video_path"] != "/data/run1" || m["frame_idx"] != 3 {
		t.Fatalf("unexpected payload %#v", m)
	}
}

func TestLoadPayloadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(`{"frame_indices":[1,2]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	payload, err := LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload: %v", err)
	}
	if _, ok := payload.(map[string]any)["frame_indices"]; !ok {
		t.Fatalf("frame_indices missing in %#v", payload)
	}
}

func TestLoadPayloadJSONKeepsLargeIntegers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.json")
	raw := `{"conf_threshold":0.25,"obj_ids":[9007199254740993]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	payload, err := LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload: %v", err)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("payload changed on the way through: got %s want %s", out, raw)
	}
}

func TestLoadPayloadErrors(t *testing.T) {
	if _, err := LoadPayload(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := LoadPayload(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "list.json")
	if err := os.WriteFile(path, []byte(`[1,2,3]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPayload(path); err == nil {
		t.Fatalf("expected error for non-object payload")
	}
}

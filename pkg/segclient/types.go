package segclient

import (
	"encoding/json"
	"fmt"
)

// SegmentRequest is the payload for a single-frame segmentation task.
type SegmentRequest struct {
	VideoPath     string      `json:"video_path" yaml:"video_path"`
	Filename      string      `json:"filename" yaml:"filename"`
	FrameIdx      int         `json:"frame_idx" yaml:"frame_idx"`
	ObjIDs        []int       `json:"obj_ids" yaml:"obj_ids"`
	BBoxes        [][]float64 `json:"bboxes" yaml:"bboxes"`
	ConfThreshold float64     `json:"conf_threshold" yaml:"conf_threshold"`
}

// SegmentBatchRequest is the payload for a multi-frame segmentation task.
// FrameIndices, ObjIDsList and BBoxesList are parallel slices.
type SegmentBatchRequest struct {
	VideoPath     string        `json:"video_path" yaml:"video_path"`
	Filename      string        `json:"filename" yaml:"filename"`
	FrameIndices  []int         `json:"frame_indices" yaml:"frame_indices"`
	ObjIDsList    [][]int       `json:"obj_ids_list" yaml:"obj_ids_list"`
	BBoxesList    [][][]float64 `json:"bboxes_list" yaml:"bboxes_list"`
	ConfThreshold float64       `json:"conf_threshold" yaml:"conf_threshold"`
}

// VideoAnalysisRequest is the payload for a video analysis task.
type VideoAnalysisRequest struct {
	VideoDir     string  `json:"video_dir" yaml:"video_dir"`
	UserPrompt   string  `json:"user_prompt" yaml:"user_prompt"`
	OriginalFPS  float64 `json:"original_fps" yaml:"original_fps"`
	TargetFPS    float64 `json:"target_fps" yaml:"target_fps"`
	FramesNeeded int     `json:"frames_needed" yaml:"frames_needed"`
	GridSize     int     `json:"grid_size" yaml:"grid_size"`
	Columns      int     `json:"columns" yaml:"columns"`
}

// ImageAnalysisRequest is the payload for an image analysis task.
type ImageAnalysisRequest struct {
	Base64Images []string `json:"base64_images" yaml:"base64_images"`
	UserPrompt   string   `json:"user_prompt" yaml:"user_prompt"`
}

// Frame is one image found by a folder scan.
type Frame struct {
	Index        int    `json:"index"`
	Filename     string `json:"filename"`
	FilePath     string `json:"file_path"`
	RelativePath string `json:"relative_path"`
}

// ScanResult is the body returned by ScanFolder.
type ScanResult struct {
	Success    bool    `json:"success"`
	FolderPath string  `json:"folder_path"`
	FrameCount int     `json:"frame_count"`
	Frames     []Frame `json:"frames"`
}

// TaskTicket is the body returned when a task is enqueued.
type TaskTicket struct {
	Status Status `json:"status"`
	TaskID string `json:"task_id"`
}

// TaskState is the body returned by TaskStatus. Result and Frames are only
// populated once the task is terminal.
type TaskState struct {
	Status Status            `json:"status"`
	TaskID string            `json:"task_id,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Frames map[string]string `json:"frames,omitempty"`
}

// Decode unmarshals a raw response body into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("decode %T: empty body", out)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

package publishers

import (
	"encoding/json"
	"time"

	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

// Event is the payload published when a watched task reaches a terminal state.
type Event struct {
	TaskID      string           `json:"task_id"`
	Kind        string           `json:"kind,omitempty"`
	Status      segclient.Status `json:"status"`
	Result      json.RawMessage  `json:"result,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}

// NewEvent constructs an Event for a task and its final state.
func NewEvent(kind string, state segclient.TaskState) Event {
	return Event{
		TaskID:      state.TaskID,
		Kind:        kind,
		Status:      state.Status,
		Result:      state.Result,
		CompletedAt: time.Now().UTC(),
	}
}

// attributes returns the routing attributes shared by the queue publishers.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"task_id": e.TaskID,
		"status":  string(e.Status),
	}
	if e.Kind != "" {
		attrs["kind"] = e.Kind
	}
	return attrs
}

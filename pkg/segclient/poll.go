package segclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is used by WaitForTask when no interval is given.
const DefaultPollInterval = 5 * time.Second

// ErrUnknownTaskStatus is returned when the backend reports a status WaitForTask
// does not understand.
var ErrUnknownTaskStatus = errors.New("unknown task status")

// TaskFailedError is returned by WaitForTask when the task ends in the error state.
type TaskFailedError struct {
	TaskID string
	Result json.RawMessage
}

func (e *TaskFailedError) Error() string {
	var msg string
	if err := json.Unmarshal(e.Result, &msg); err != nil || msg == "" {
		msg = string(e.Result)
	}
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, msg)
}

// WaitForTask polls TaskStatus every interval until the task is done or failed.
// Any request error ends the wait and is returned unchanged. The wait is bounded
// only by ctx.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (TaskState, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		raw, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			return TaskState{}, err
		}
		state, err := Decode[TaskState](raw)
		if err != nil {
			return TaskState{}, err
		}
		if state.TaskID == "" {
			state.TaskID = taskID
		}

		if !state.Status.Known() {
			return state, fmt.Errorf("%w: %q", ErrUnknownTaskStatus, state.Status)
		}
		switch state.Status {
		case StatusDone:
			return state, nil
		case StatusError:
			return state, &TaskFailedError{TaskID: taskID, Result: state.Result}
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}

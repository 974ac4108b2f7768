package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

// WatchResult is the outcome of watching one task.
type WatchResult struct {
	TaskID string
	State  segclient.TaskState
	Err    error
}

// WatchAll watches every task concurrently and returns results in input order.
// The returned error joins the per-task failures.
func (c *Console) WatchAll(ctx context.Context, taskIDs []string) ([]WatchResult, error) {
	if len(taskIDs) == 0 {
		return nil, fmt.Errorf("no task ids to watch")
	}

	results := make([]WatchResult, len(taskIDs))
	var wg sync.WaitGroup
	for i, id := range taskIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			state, err := c.Watch(ctx, id)
			results[i] = WatchResult{TaskID: id, State: state, Err: err}
		}(i, id)
	}
	wg.Wait()

	errs := make([]error, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		errs = append(errs, r.Err)
		c.log.ErrorObj("task watch failed", "watch_error", map[string]any{
			"task_id": r.TaskID,
			"error":   r.Err.Error(),
		})
	}
	if len(errs) > 0 {
		return results, errors.Join(errs...)
	}
	return results, nil
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Adda-Baaj/frameseg/internal/config"
	"github.com/Adda-Baaj/frameseg/internal/logger"
	"github.com/Adda-Baaj/frameseg/internal/storage"
	"github.com/Adda-Baaj/frameseg/pkg/publishers"
	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

// Kind names a task-submitting backend operation.
type Kind string

const (
	KindSegmentFrame  Kind = "segment_frame"
	KindSegmentFrames Kind = "segment_frames"
	KindAnalyzeVideo  Kind = "analyze_video"
	KindAnalyzeImage  Kind = "analyze_image"
)

// Console wires the backend client, the task journal and the notifiers behind
// the framesegctl commands.
type Console struct {
	client       *segclient.Client
	journal      storage.Journal
	fanout       *publishers.Fanout
	pollInterval time.Duration
	log          logger.Logger
}

// NewConsole builds a console runtime from config.
func NewConsole(ctx context.Context, cfg *config.Config, log logger.Logger) (*Console, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	baseURL := cfg.BackendURL()
	if err := requireAbsoluteURL(baseURL); err != nil {
		return nil, err
	}

	client := segclient.New(segclient.Options{
		Env:     cfg.Env,
		BaseURL: baseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  log,
	})
	log.DebugObj("backend client configured", "backend", map[string]any{
		"base_url":   client.BaseURL(),
		"timeout_ms": cfg.RequestTimeout.Milliseconds(),
	})

	journal, err := storage.NewJournal(cfg.JournalType, cfg.JournalPath, storage.Options{
		TTL:             cfg.JournalTTL,
		CleanupInterval: cfg.JournalCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		journal.Close()
		return nil, err
	}

	return newConsole(client, journal, fanout, cfg.PollInterval, log), nil
}

// requireAbsoluteURL rejects relative bases such as the development "/api",
// which only resolve behind a proxy the CLI does not have.
func requireAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend url %q is not absolute: set BACKEND_URL (for example http://localhost:8000) or a non-development APP_ENV", raw)
	}
	return nil
}

func newConsole(client *segclient.Client, journal storage.Journal, fanout *publishers.Fanout, poll time.Duration, log logger.Logger) *Console {
	if journal == nil {
		journal, _ = storage.NewJournal("none", "", storage.Options{})
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Console{
		client:       client,
		journal:      journal,
		fanout:       fanout,
		pollInterval: poll,
		log:          log,
	}
}

// buildFanout loads the publishers file; an empty path disables notifications.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	pubCfg, err := publishers.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers config: %w", err)
	}
	enabled := pubCfg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers config loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Client exposes the backend facade.
func (c *Console) Client() *segclient.Client { return c.client }

// Scan asks the backend to scan a folder for frames.
func (c *Console) Scan(ctx context.Context, folder string) (json.RawMessage, error) {
	body, err := c.client.ScanFolder(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("scan folder %q: %w", folder, err)
	}
	return body, nil
}

// FrameURL returns the image URL of one frame.
func (c *Console) FrameURL(folder, filename string) string {
	return c.client.FrameImageURL(folder, filename)
}

// Submit sends payload to the endpoint for kind and journals the returned task id.
func (c *Console) Submit(ctx context.Context, kind Kind, payload any) (json.RawMessage, error) {
	var submit func(context.Context, any) (json.RawMessage, error)
	switch kind {
	case KindSegmentFrame:
		submit = c.client.SegmentFrame
	case KindSegmentFrames:
		submit = c.client.SegmentFrames
	case KindAnalyzeVideo:
		submit = c.client.AnalyzeVideo
	case KindAnalyzeImage:
		submit = c.client.AnalyzeImage
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}

	body, err := submit(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}

	ticket, err := segclient.Decode[segclient.TaskTicket](body)
	if err != nil || ticket.TaskID == "" {
		c.log.WarnObj("submit response carried no task id", "submit_response", map[string]any{
			"kind": kind,
			"body": string(body),
		})
		return body, nil
	}

	if err := c.journal.Record(storage.Task{
		ID:     ticket.TaskID,
		Kind:   string(kind),
		Status: string(ticket.Status),
	}); err != nil {
		c.log.ErrorObj("journal record failed", "journal_error", map[string]any{
			"task_id": ticket.TaskID,
			"error":   err.Error(),
		})
	}
	c.log.InfoObj("task submitted", "task", map[string]any{
		"task_id": ticket.TaskID,
		"kind":    kind,
	})
	return body, nil
}

// Status fetches the task status once and refreshes the journal entry.
func (c *Console) Status(ctx context.Context, taskID string) (json.RawMessage, error) {
	body, err := c.client.TaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task status %s: %w", taskID, err)
	}
	if state, err := segclient.Decode[segclient.TaskState](body); err == nil {
		c.updateJournal(taskID, state.Status)
	}
	return body, nil
}

// Watch polls until the task finishes, then journals and publishes the outcome.
func (c *Console) Watch(ctx context.Context, taskID string) (segclient.TaskState, error) {
	state, waitErr := c.client.WaitForTask(ctx, taskID, c.pollInterval)

	var failed *segclient.TaskFailedError
	if waitErr != nil && !errors.As(waitErr, &failed) {
		return state, fmt.Errorf("watch task %s: %w", taskID, waitErr)
	}

	c.updateJournal(taskID, state.Status)

	kind := ""
	if task, ok, err := c.journal.Get(taskID); err == nil && ok {
		kind = task.Kind
	}
	delivered, pubErr := c.fanout.Publish(ctx, publishers.NewEvent(kind, state))
	if pubErr != nil {
		c.log.ErrorObj("task event publish failed", "publish_error", map[string]any{
			"task_id":   taskID,
			"delivered": delivered,
			"error":     pubErr.Error(),
		})
	}
	c.log.InfoObj("task finished", "task", map[string]any{
		"task_id":   taskID,
		"status":    state.Status,
		"delivered": delivered,
	})

	return state, errors.Join(waitErr, pubErr)
}

// Tasks lists journaled tasks, newest first.
func (c *Console) Tasks() ([]storage.Task, error) {
	tasks, err := c.journal.List()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Close releases the journal and the notifiers.
func (c *Console) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.journal.Close(), c.fanout.Close())
}

func (c *Console) updateJournal(taskID string, status segclient.Status) {
	if status == "" {
		return
	}
	err := c.journal.UpdateStatus(taskID, string(status))
	if err == nil || errors.Is(err, storage.ErrTaskNotFound) {
		return
	}
	c.log.WarnObj("journal update failed", "journal_error", map[string]any{
		"task_id": taskID,
		"error":   err.Error(),
	})
}

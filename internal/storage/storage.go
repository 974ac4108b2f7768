package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a local journal of tasks submitted to the backend.

// ErrTaskNotFound is returned when updating a task the journal does not hold.
var ErrTaskNotFound = errors.New("task not found")

// Task is a journal entry for one submitted backend task.
type Task struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Journal records submitted tasks and their last known status.
type Journal interface {
	Close() error
	Record(task Task) error
	Get(id string) (Task, bool, error)
	UpdateStatus(id, status string) error
	List() ([]Task, error)
}

// Options controls retention characteristics for concrete journal implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewJournal creates the configured journal backend.
func NewJournal(typ, path string, opts Options) (Journal, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopJournal{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt journal requires a path")
		}
		j, err := openBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unsupported journal type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopJournal struct{}

func (noopJournal) Close() error                      { return nil }
func (noopJournal) Record(Task) error                 { return nil }
func (noopJournal) Get(string) (Task, bool, error)    { return Task{}, false, nil }
func (noopJournal) UpdateStatus(string, string) error { return nil }
func (noopJournal) List() ([]Task, error)             { return nil, nil }

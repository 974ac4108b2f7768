package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	taskBucket       = "tasks"
	expiryValueBytes = 8
)

// boltJournal implements a Journal backed by BoltDB. Values are an 8 byte
// big-endian expiry followed by the JSON encoded Task.
type boltJournal struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Journal.
func openBolt(path string, opts Options) (*boltJournal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(taskBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	j := &boltJournal{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	j.lastCleanup.Store(j.now().Unix())
	return j, nil
}

// Close closes the BoltDB journal.
func (b *boltJournal) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Record stores task, replacing any previous entry with the same id.
func (b *boltJournal) Record(task Task) error {
	if b == nil || b.db == nil {
		return nil
	}
	task.ID = strings.TrimSpace(task.ID)
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = now.UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.SubmittedAt
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		value, err := encodeTask(task, now.Add(b.ttl))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(task.ID), value)
	})
}

// Get returns the task with the given id if present and not expired.
func (b *boltJournal) Get(id string) (Task, bool, error) {
	if b == nil || b.db == nil {
		return Task{}, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return Task{}, false, err
	}

	var (
		task  Task
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		key := []byte(id)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		t, expiry, ok := decodeTask(value)
		if !ok || !expiry.After(now) {
			return bucket.Delete(key)
		}
		task, found = t, true
		return nil
	})
	return task, found, err
}

// UpdateStatus sets the status of a known task and refreshes its expiry.
func (b *boltJournal) UpdateStatus(id, status string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		key := []byte(id)
		value := bucket.Get(key)
		if value == nil {
			return fmt.Errorf("update %q: %w", id, ErrTaskNotFound)
		}
		task, expiry, ok := decodeTask(value)
		if !ok || !expiry.After(now) {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			return fmt.Errorf("update %q: %w", id, ErrTaskNotFound)
		}

		task.Status = status
		task.UpdatedAt = now.UTC()
		updated, err := encodeTask(task, now.Add(b.ttl))
		if err != nil {
			return err
		}
		return bucket.Put(key, updated)
	})
}

// List returns all live tasks ordered by submission time, newest first.
func (b *boltJournal) List() ([]Task, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	var tasks []Task
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			task, expiry, ok := decodeTask(v)
			if ok && expiry.After(now) {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].SubmittedAt.After(tasks[j].SubmittedAt)
	})
	return tasks, nil
}

// maybeCleanupExpired removes expired tasks on a fixed cadence to avoid unbounded growth.
func (b *boltJournal) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			_, expiry, ok := decodeTask(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func encodeTask(task Task, expiry time.Time) ([]byte, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	buf := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	return append(buf, payload...), nil
}

// decodeTask splits a stored value into the task and its expiry time.
func decodeTask(value []byte) (Task, time.Time, bool) {
	if len(value) <= expiryValueBytes {
		return Task{}, time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return Task{}, time.Time{}, false
	}
	var task Task
	if err := json.Unmarshal(value[expiryValueBytes:], &task); err != nil {
		return Task{}, time.Time{}, false
	}
	return task, time.Unix(unix, 0), true
}

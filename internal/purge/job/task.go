package job

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Task is a deferred purge. Everything is true iff URLs is empty.
type Task struct {
	ID         string    `json:"id"`
	URLs       []string  `json:"urls,omitempty"`
	Everything bool      `json:"everything"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Enqueuer accepts tasks for later execution. Running a task twice is harmless.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// NewURLTask creates a task purging urls. The slice is copied.
func NewURLTask(urls []string) Task {
	return Task{
		ID:         uuid.NewString(),
		URLs:       append([]string(nil), urls...),
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewEverythingTask creates a full-purge task
func NewEverythingTask() Task {
	return Task{
		ID:         uuid.NewString(),
		Everything: true,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Kind returns the purge action the task carries
func (t Task) Kind() string {
	switch {
	case t.Everything:
		return "purge_everything"
	case len(t.URLs) > 0:
		return "purge_urls"
	default:
		return "none"
	}
}

// Fingerprint identifies the work a task does, ignoring ID, timestamp and URL order.
// Two pending tasks with the same fingerprint purge the same thing.
func (t Task) Fingerprint() string {
	if t.Everything {
		return "everything"
	}
	sorted := append([]string(nil), t.URLs...)
	sort.Strings(sorted)
	return "urls:" + strconv.FormatUint(xxhash.Sum64String(strings.Join(sorted, "\n")), 16)
}

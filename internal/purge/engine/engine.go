// Package engine turns content events into purge actions.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/urlutil"
	"github.com/edgecomet/purgebridge/internal/purge/job"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

// Action is the purge selected for an event
type Action string

const (
	ActionNone            Action = "none"
	ActionPurgeURLs       Action = "purge_urls"
	ActionPurgeEverything Action = "purge_everything"
)

// Reasons for ActionNone
const (
	ReasonDisabled         = "disabled"
	ReasonKindDisabled     = "kind_disabled"
	ReasonNoURLsNoFallback = "no_urls_no_fallback"
)

// Decision describes what Handle did with an event
type Decision struct {
	Action Action   `json:"action"`
	Reason string   `json:"reason,omitempty"`
	URLs   []string `json:"urls,omitempty"`
	Queued bool     `json:"queued"`
	// Success is the inline purge result; false for queued or skipped events
	Success bool `json:"success"`
}

// Engine gates events on configuration, extracts stale URLs and routes the
// purge inline or through the queue.
type Engine struct {
	provider configtypes.PurgeConfigProvider
	purger   job.Purger
	enqueuer job.Enqueuer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func New(provider configtypes.PurgeConfigProvider, purger job.Purger, enqueuer job.Enqueuer, collector *metrics.Collector, logger *zap.Logger) *Engine {
	return &Engine{
		provider: provider,
		purger:   purger,
		enqueuer: enqueuer,
		metrics:  collector,
		logger:   logger,
	}
}

// Handle processes ev. Failures are logged and counted, never returned.
func (e *Engine) Handle(ctx context.Context, ev Event) Decision {
	d := e.dispatch(ctx, ev)
	e.metrics.RecordEvent(ev.Kind.String(), string(d.Action))
	return d
}

func (e *Engine) dispatch(ctx context.Context, ev Event) Decision {
	cfg := e.provider.GetConfig()
	if cfg == nil || !cfg.Purge.IsEnabled() {
		return Decision{Action: ActionNone, Reason: ReasonDisabled}
	}

	kind := ev.Kind.String()
	if !cfg.Purge.KindEnabled(kind) {
		e.logger.Debug("Purge not enabled for event kind", zap.String("event_kind", kind))
		return Decision{Action: ActionNone, Reason: ReasonKindDisabled}
	}

	urls := ExtractURLs(cfg.SiteURL, ev.Subject)
	queued := cfg.Purge.QueuePurge

	if cfg.Purge.Debug {
		e.logger.Debug("Content event triggered purge",
			zap.String("event_kind", kind),
			zap.Strings("urls", urls),
			zap.Bool("queue_enabled", queued))
	}

	var d Decision
	switch {
	case len(urls) > 0 && cfg.Purge.ShouldPurgeURLs():
		d = Decision{Action: ActionPurgeURLs, URLs: urls}
	case cfg.Purge.ShouldFallbackToEverything():
		d = Decision{Action: ActionPurgeEverything}
	default:
		e.logger.Debug("Skipping purge: no URLs and fallback disabled", zap.String("event_kind", kind))
		return Decision{Action: ActionNone, Reason: ReasonNoURLsNoFallback}
	}

	if queued {
		d.Queued = e.enqueue(ctx, d)
		return d
	}

	e.logger.Debug("Performing synchronous purge",
		zap.String("event_kind", kind),
		zap.String("action", string(d.Action)),
		zap.Int("urls", len(d.URLs)))

	if d.Action == ActionPurgeURLs {
		d.Success = e.purger.PurgeURLs(ctx, d.URLs)
	} else {
		d.Success = e.purger.PurgeEverything(ctx)
	}
	return d
}

func (e *Engine) enqueue(ctx context.Context, d Decision) bool {
	var task job.Task
	if d.Action == ActionPurgeURLs {
		task = job.NewURLTask(d.URLs)
	} else {
		task = job.NewEverythingTask()
	}

	if e.enqueuer == nil {
		e.logger.Error("queue_purge is set but no purge queue is available", zap.String("action", task.Kind()))
		return false
	}

	// The queue counts rejected tasks in tasks_total
	if err := e.enqueuer.Enqueue(ctx, task); err != nil {
		e.logger.Error("Failed to enqueue purge task",
			zap.String("task_id", task.ID),
			zap.String("action", task.Kind()),
			zap.Error(err))
		return false
	}

	e.logger.Debug("Dispatched purge task",
		zap.String("task_id", task.ID),
		zap.String("action", task.Kind()),
		zap.Int("urls", len(task.URLs)))
	return true
}

// ExtractURLs returns the absolute, deduplicated URLs that go stale when
// subject changes: the subject's own URL then its parent's. The parent is
// only consulted when the subject itself has a URL.
func ExtractURLs(siteURL string, subject Subject) []string {
	if subject == nil {
		return nil
	}

	u, ok := subject.URL()
	if !ok || u == "" {
		return nil
	}

	candidates := []string{urlutil.MakeAbsolute(siteURL, u)}
	if p, isParented := subject.(Parented); isParented {
		if parent, ok := p.Parent(); ok && parent != nil {
			if pu, ok := parent.URL(); ok {
				candidates = append(candidates, urlutil.MakeAbsolute(siteURL, pu))
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		urls = append(urls, c)
	}
	return urls
}

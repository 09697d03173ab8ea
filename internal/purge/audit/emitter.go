// Package audit writes one line per CDN zone request to a rotated file so
// operators can answer "what did we purge, when, and did it work" without
// grepping application logs.
package audit

import "time"

// Record describes a single per-zone purge request
type Record struct {
	Timestamp  time.Time
	BridgeID   string
	ZoneID     string
	Action     string // purge_urls | purge_everything
	Success    bool
	Kind       string // ok | config | api | transport
	StatusCode int
	FilesCount int
	Duration   time.Duration
	Error      string
}

// Emitter is a fire-and-forget audit sink. Write errors are logged, never returned.
type Emitter interface {
	Emit(rec *Record)
	Close() error
}

// NoopEmitter discards records
type NoopEmitter struct{}

func (NoopEmitter) Emit(*Record) {}

func (NoopEmitter) Close() error { return nil }

package cfclient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Purge actions, used as log field values and metric labels
const (
	ActionPurgeURLs       = "purge_urls"
	ActionPurgeEverything = "purge_everything"
)

// ErrorKind classifies a zone request outcome
type ErrorKind string

const (
	KindOK        ErrorKind = "ok"
	KindConfig    ErrorKind = "config"    // token or zone id missing, no I/O attempted
	KindAPI       ErrorKind = "api"       // CDN answered with a failure or an unreadable body
	KindTransport ErrorKind = "transport" // request never got a response
)

// ErrNotConfigured is returned for zone requests without a token or zone id
var ErrNotConfigured = errors.New("API token or zone ID not configured")

// PurgeRequest is the purge_cache request body. Exactly one field is set.
type PurgeRequest struct {
	Everything bool     `json:"purge_everything,omitempty"`
	Files      []string `json:"files,omitempty"`
}

// APIError is one entry of the CDN "errors" array
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e APIError) String() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

type apiResponse struct {
	Success bool       `json:"success"`
	Errors  []APIError `json:"errors"`
}

// Result is the outcome for one zone. A zone whose URL list was split into
// several requests succeeds only if every request succeeded.
type Result struct {
	ZoneID     string
	Action     string
	Success    bool
	Kind       ErrorKind
	StatusCode int // last HTTP status seen, 0 when no response
	Files      int
	Requests   int
	Err        error
	Duration   time.Duration
	Errors     []APIError
}

// Outcome aggregates every zone attempted by one call
type Outcome struct {
	Success bool
	Results []Result
}

// FailedZones lists zone ids whose request failed
func (o Outcome) FailedZones() []string {
	var out []string
	for _, r := range o.Results {
		if !r.Success {
			out = append(out, r.ZoneID)
		}
	}
	return out
}

func aggregate(results []Result) Outcome {
	if len(results) == 0 {
		return Outcome{}
	}
	ok := true
	for _, r := range results {
		ok = ok && r.Success
	}
	return Outcome{Success: ok, Results: results}
}

func joinAPIErrors(errs []APIError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

package cfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/purge/audit"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
	"github.com/edgecomet/purgebridge/internal/purge/zone"
)

const (
	defaultMaxFiles       = 30
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// Client issues purge_cache requests against the Cloudflare v4 API.
// Configuration is read from the provider on every call so reloads apply
// to the next purge without rebuilding the client.
type Client struct {
	provider   configtypes.PurgeConfigProvider
	httpClient *http.Client
	metrics    *metrics.Collector
	audit      audit.Emitter
	logger     *zap.Logger
	now        func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records per-zone request metrics
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithAudit writes one audit record per HTTP request
func WithAudit(e audit.Emitter) Option {
	return func(c *Client) { c.audit = e }
}

func New(provider configtypes.PurgeConfigProvider, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		audit:  audit.NoopEmitter{},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PurgeURLs purges urls, one request per zone. False when urls is empty.
func (c *Client) PurgeURLs(ctx context.Context, urls []string) bool {
	return c.PurgeURLsDetailed(ctx, urls).Success
}

// PurgeEverything purges every configured zone, or the default zone in single-zone mode
func (c *Client) PurgeEverything(ctx context.Context) bool {
	return c.PurgeEverythingDetailed(ctx).Success
}

// PurgeEverythingForZone purges one zone fully; empty zoneID means the default zone
func (c *Client) PurgeEverythingForZone(ctx context.Context, zoneID string) bool {
	return c.PurgeEverythingForZoneDetailed(ctx, zoneID).Success
}

func (c *Client) PurgeURLsDetailed(ctx context.Context, urls []string) Outcome {
	files := uniqueNonEmpty(urls)
	if len(files) == 0 {
		c.logger.Debug("No URLs to purge")
		return Outcome{}
	}

	cfg := c.provider.GetConfig()
	resolver := zone.FromConfig(&cfg.Purge)

	grouping := resolver.GroupByZone(files)
	if len(grouping) == 0 {
		grouping = zone.Grouping{{ZoneID: resolver.DefaultZone(), URLs: files}}
	}

	grouped := 0
	for _, g := range grouping {
		grouped += len(g.URLs)
	}
	if grouped < len(files) {
		c.logger.Warn("URLs with no matching zone and no default zone_id were not purged",
			zap.Int("urls", len(files)),
			zap.Int("dropped", len(files)-grouped))
	}

	results := make([]Result, 0, len(grouping))
	for _, g := range grouping {
		results = append(results, c.purgeZoneFiles(ctx, cfg, g.ZoneID, g.URLs))
	}
	return c.finish(ActionPurgeURLs, results)
}

func (c *Client) PurgeEverythingDetailed(ctx context.Context) Outcome {
	cfg := c.provider.GetConfig()
	resolver := zone.FromConfig(&cfg.Purge)

	zones := resolver.AllConfiguredZones()
	if len(zones) == 0 {
		zones = []string{resolver.DefaultZone()}
	}

	results := make([]Result, 0, len(zones))
	for _, zoneID := range zones {
		results = append(results, c.purgeZoneEverything(ctx, cfg, zoneID))
	}
	return c.finish(ActionPurgeEverything, results)
}

// finish aggregates per-zone results and reports which zones failed when
// only some of them did
func (c *Client) finish(action string, results []Result) Outcome {
	outcome := aggregate(results)
	if outcome.Success || len(results) < 2 {
		return outcome
	}
	if failed := outcome.FailedZones(); len(failed) < len(results) {
		c.logger.Warn("Cloudflare purge partially failed",
			zap.String("action", action),
			zap.Strings("failed_zones", failed),
			zap.Int("zones", len(results)))
	}
	return outcome
}

func (c *Client) PurgeEverythingForZoneDetailed(ctx context.Context, zoneID string) Outcome {
	cfg := c.provider.GetConfig()
	if zoneID == "" {
		zoneID = cfg.Purge.ZoneID
	}
	return aggregate([]Result{c.purgeZoneEverything(ctx, cfg, zoneID)})
}

func (c *Client) purgeZoneEverything(ctx context.Context, cfg *configtypes.BridgeConfig, zoneID string) Result {
	res := Result{ZoneID: zoneID, Action: ActionPurgeEverything}
	c.merge(&res, c.send(ctx, cfg, zoneID, ActionPurgeEverything, PurgeRequest{Everything: true}))
	return res
}

// purgeZoneFiles splits files into API-sized batches; every batch is attempted
func (c *Client) purgeZoneFiles(ctx context.Context, cfg *configtypes.BridgeConfig, zoneID string, files []string) Result {
	size := cfg.Purge.MaxFilesPerRequest
	if size <= 0 {
		size = defaultMaxFiles
	}

	res := Result{ZoneID: zoneID, Action: ActionPurgeURLs, Files: len(files)}
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		c.merge(&res, c.send(ctx, cfg, zoneID, ActionPurgeURLs, PurgeRequest{Files: files[start:end]}))
	}
	return res
}

// merge folds one request attempt into the zone result. The first failure decides Kind and Err.
func (c *Client) merge(res *Result, attempt attemptResult) {
	first := res.Requests == 0
	res.Requests++
	res.Duration += attempt.duration
	res.Errors = append(res.Errors, attempt.apiErrors...)
	if attempt.statusCode != 0 {
		res.StatusCode = attempt.statusCode
	}

	switch {
	case first:
		res.Success = attempt.success
		res.Kind = attempt.kind
		res.Err = attempt.err
	case res.Success && !attempt.success:
		res.Success = false
		res.Kind = attempt.kind
		res.Err = attempt.err
	}
}

type attemptResult struct {
	success    bool
	kind       ErrorKind
	statusCode int
	apiErrors  []APIError
	err        error
	duration   time.Duration
}

// send performs one purge_cache request and records logs, metrics and audit
func (c *Client) send(ctx context.Context, cfg *configtypes.BridgeConfig, zoneID, action string, body PurgeRequest) attemptResult {
	start := c.now()
	attempt := c.do(ctx, cfg, zoneID, action, body)
	attempt.duration = c.now().Sub(start)

	c.metrics.RecordPurgeRequest(zoneLabel(zoneID), action, attempt.success, attempt.duration)

	rec := &audit.Record{
		Timestamp:  start,
		BridgeID:   cfg.BridgeID,
		ZoneID:     zoneID,
		Action:     action,
		Success:    attempt.success,
		Kind:       string(attempt.kind),
		StatusCode: attempt.statusCode,
		FilesCount: len(body.Files),
		Duration:   attempt.duration,
	}
	if attempt.err != nil {
		rec.Error = attempt.err.Error()
	}
	c.audit.Emit(rec)

	return attempt
}

func (c *Client) do(ctx context.Context, cfg *configtypes.BridgeConfig, zoneID, action string, body PurgeRequest) attemptResult {
	token := cfg.Purge.APIToken
	if token == "" || zoneID == "" {
		c.logger.Error("Cloudflare purge: API token or zone ID not configured",
			zap.String("action", action),
			zap.String("zone_id", zoneID),
			zap.Bool("has_token", token != ""))
		return attemptResult{kind: KindConfig, err: ErrNotConfigured}
	}

	if cfg.Purge.Debug {
		c.logDebugPayload(cfg, zoneID, action, body)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return attemptResult{kind: KindTransport, err: fmt.Errorf("failed to marshal purge request: %w", err)}
	}

	timeout := cfg.Purge.Timeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := purgeEndpoint(cfg.Purge.APIBaseURL, zoneID)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("Failed to create purge request",
			zap.String("action", action),
			zap.String("zone_id", zoneID),
			zap.Error(err))
		return attemptResult{kind: KindTransport, err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Cloudflare purge request failed",
			zap.String("action", action),
			zap.String("zone_id", zoneID),
			zap.Error(err))
		return attemptResult{kind: KindTransport, err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("Failed to read purge response",
			zap.String("action", action),
			zap.String("zone_id", zoneID),
			zap.Int("status_code", httpResp.StatusCode),
			zap.Error(err))
		return attemptResult{kind: KindTransport, statusCode: httpResp.StatusCode, err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var parsed apiResponse
	parseErr := json.Unmarshal(respBody, &parsed)
	statusOK := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300

	if statusOK && parseErr == nil && parsed.Success {
		c.logger.Info("Cloudflare cache purged",
			zap.String("action", action),
			zap.String("zone_id", zoneID),
			zap.Int("files_count", len(body.Files)))
		return attemptResult{success: true, kind: KindOK, statusCode: httpResp.StatusCode}
	}

	var failure error
	switch {
	case parseErr != nil:
		failure = fmt.Errorf("unparseable response (status %d): %w", httpResp.StatusCode, parseErr)
	case len(parsed.Errors) > 0:
		failure = fmt.Errorf("cloudflare API error (status %d): %s", httpResp.StatusCode, joinAPIErrors(parsed.Errors))
	default:
		failure = fmt.Errorf("cloudflare API returned status %d, success=%t", httpResp.StatusCode, parsed.Success)
	}

	fields := []zap.Field{
		zap.String("action", action),
		zap.String("zone_id", zoneID),
		zap.Int("status_code", httpResp.StatusCode),
		zap.Any("errors", parsed.Errors),
	}
	if parseErr != nil {
		fields = append(fields, zap.String("response_preview", preview(respBody)))
	}
	c.logger.Error("Failed to purge Cloudflare cache", fields...)

	return attemptResult{kind: KindAPI, statusCode: httpResp.StatusCode, apiErrors: parsed.Errors, err: failure}
}

// logDebugPayload traces the request shape; only the first debug_payload_limit URLs are listed
func (c *Client) logDebugPayload(cfg *configtypes.BridgeConfig, zoneID, action string, body PurgeRequest) {
	limit := cfg.Purge.DebugPayloadLimit
	shown := body.Files
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	c.logger.Debug("Attempting Cloudflare purge API call",
		zap.String("action", action),
		zap.String("zone_id", zoneID),
		zap.Bool("purge_everything", body.Everything),
		zap.Int("files_count", len(body.Files)),
		zap.Strings("files", shown),
		zap.Bool("files_truncated", len(shown) < len(body.Files)))
}

func purgeEndpoint(baseURL, zoneID string) string {
	if baseURL == "" {
		baseURL = configtypes.DefaultAPIBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/zones/" + url.PathEscape(zoneID) + "/purge_cache"
}

func uniqueNonEmpty(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func zoneLabel(zoneID string) string {
	if zoneID == "" {
		return "none"
	}
	return zoneID
}

func preview(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

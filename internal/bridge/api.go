package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/httputil"
	"github.com/edgecomet/purgebridge/internal/purge/engine"
	"github.com/edgecomet/purgebridge/internal/purge/zone"
)

// EventRequest is the POST /events body
type EventRequest struct {
	Kind    string         `json:"kind"`
	Subject SubjectPayload `json:"subject"`
}

// SubjectPayload carries the subject URL and its listing page URL, both optional
type SubjectPayload struct {
	URL       string `json:"url,omitempty"`
	ParentURL string `json:"parent_url,omitempty"`
}

// StatusResponse is the GET /status body
type StatusResponse struct {
	BridgeID      string      `json:"bridge_id"`
	UptimeSeconds int         `json:"uptime_seconds"`
	Enabled       bool        `json:"enabled"`
	QueuePurge    bool        `json:"queue_purge"`
	MultiZone     bool        `json:"multi_zone"`
	Zones         []string    `json:"zones"`
	Queue         QueueStatus `json:"queue"`
}

// QueueStatus reports the deferred queue
type QueueStatus struct {
	Backend   string `json:"backend"`
	Depth     int    `json:"depth"`
	Processed int64  `json:"processed"`
	LastTick  string `json:"last_tick,omitempty"`
}

// ServeHTTP is the bridge API handler
func (b *Bridge) ServeHTTP(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	cfg := b.config.GetConfig()
	if !httputil.CheckInternalAuth(ctx, cfg.HTTPApi.AuthKey) {
		b.logger.Warn("Unauthorized API request",
			zap.String("path", path),
			zap.String("remote_addr", ctx.RemoteAddr().String()))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return
	}

	switch {
	case method == fasthttp.MethodPost && path == "/events":
		b.handleEventAPI(ctx)
	case method == fasthttp.MethodPost && path == "/purge":
		b.handlePurgeAPI(ctx)
	case method == fasthttp.MethodGet && path == "/status":
		b.handleStatusAPI(ctx)
	default:
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

// handleEventAPI handles POST /events
func (b *Bridge) handleEventAPI(ctx *fasthttp.RequestCtx) {
	var req EventRequest
	if err := httputil.DecodeJSONBody(ctx, &req); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}

	kind, err := engine.ParseEventKind(req.Kind)
	if err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}

	ev := engine.Event{
		Kind:    kind,
		Subject: engine.NewSubject(kind, req.Subject.URL, req.Subject.ParentURL),
	}

	reqCtx, cancel := b.requestContext()
	defer cancel()

	decision := b.HandleEvent(reqCtx, ev)

	b.logger.Debug("Content event handled",
		zap.String("event_kind", req.Kind),
		zap.String("action", string(decision.Action)),
		zap.Bool("queued", decision.Queued))

	httputil.JSONData(ctx, decision, fasthttp.StatusAccepted)
}

// handlePurgeAPI handles POST /purge. An empty body purges everything.
func (b *Bridge) handlePurgeAPI(ctx *fasthttp.RequestCtx) {
	var req PurgeRequest
	if len(ctx.PostBody()) > 0 {
		if err := httputil.DecodeJSONBody(ctx, &req); err != nil {
			httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
			return
		}
	}

	reqCtx, cancel := b.requestContext()
	defer cancel()

	res, err := b.Purge(reqCtx, req)

	switch {
	case err == nil:
		b.logger.Info("Manual purge completed",
			zap.String("action", res.Action),
			zap.String("target", res.Target),
			zap.String("zone_id", res.ZoneID))
		httputil.JSONResult(ctx, true, "cache purged", res, fasthttp.StatusOK)
	case errors.Is(err, ErrDisabled):
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusServiceUnavailable)
	case errors.Is(err, ErrNoZoneForDomain):
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusNotFound)
	default:
		b.logger.Warn("Manual purge failed",
			zap.String("action", res.Action),
			zap.String("target", res.Target),
			zap.String("zone_id", res.ZoneID))
		httputil.JSONResult(ctx, false, err.Error(), res, fasthttp.StatusBadGateway)
	}
}

// handleStatusAPI handles GET /status
func (b *Bridge) handleStatusAPI(ctx *fasthttp.RequestCtx) {
	cfg := b.config.GetConfig()
	resolver := zone.FromConfig(&cfg.Purge)

	reqCtx, cancel := b.requestContext()
	defer cancel()

	depth, err := b.queue.Depth(reqCtx)
	if err != nil {
		b.logger.Warn("Failed to read queue depth", zap.Error(err))
		depth = -1
	}

	zones := resolver.AllConfiguredZones()
	if zones == nil {
		zones = []string{}
		if cfg.Purge.ZoneID != "" {
			zones = append(zones, cfg.Purge.ZoneID)
		}
	}

	status := StatusResponse{
		BridgeID:      cfg.BridgeID,
		UptimeSeconds: int(time.Since(b.startTime).Seconds()),
		Enabled:       cfg.Purge.IsEnabled(),
		QueuePurge:    cfg.Purge.QueuePurge,
		MultiZone:     resolver.MultiZone(),
		Zones:         zones,
		Queue: QueueStatus{
			Backend:   b.queue.Name(),
			Depth:     depth,
			Processed: b.worker.Processed(),
		},
	}
	if last := b.worker.LastTick(); !last.IsZero() {
		status.Queue.LastTick = last.Format(time.RFC3339)
	}

	httputil.JSONData(ctx, status, fasthttp.StatusOK)
}

// requestContext bounds work done on behalf of one API request by http_api.request_timeout
func (b *Bridge) requestContext() (context.Context, context.CancelFunc) {
	timeout := b.config.GetConfig().HTTPApi.RequestTimeout.ToDuration()
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

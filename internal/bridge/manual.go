package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/purge/zone"
)

var (
	// ErrDisabled is returned by ManualPurge when purging is switched off
	ErrDisabled = errors.New("purging is disabled in configuration")
	// ErrNoZoneForDomain is returned when a domain has no entry in purge.zones
	ErrNoZoneForDomain = errors.New("no zone configured for domain")
	// ErrPurgeFailed is returned when the CDN rejected or never received the purge
	ErrPurgeFailed = errors.New("failed to purge cache")
)

// ManualPurger is the part of the purge client operator commands use
type ManualPurger interface {
	PurgeURLs(ctx context.Context, urls []string) bool
	PurgeEverything(ctx context.Context) bool
	PurgeEverythingForZone(ctx context.Context, zoneID string) bool
}

// PurgeRequest is an operator purge. At most one target is used,
// in order of precedence: URLs, Zone, Domain. None purges everything.
type PurgeRequest struct {
	URLs   []string `json:"urls,omitempty"`
	Zone   string   `json:"zone,omitempty"`
	Domain string   `json:"domain,omitempty"`
}

// PurgeResult describes what ManualPurge did
type PurgeResult struct {
	Action  string `json:"action"`
	Target  string `json:"target"`
	ZoneID  string `json:"zone_id,omitempty"`
	Zones   int    `json:"zones,omitempty"` // zones covered by a full purge
	Success bool   `json:"success"`
}

// Describe renders the operator-facing progress line
func (r PurgeResult) Describe() string {
	switch r.Target {
	case "url":
		return "Purging cache for URL(s)"
	case "zone":
		return fmt.Sprintf("Purging all cache for zone: %s", r.ZoneID)
	case "domain":
		return fmt.Sprintf("Purging all cache for domain (zone: %s)", r.ZoneID)
	default:
		if r.Zones > 0 {
			return fmt.Sprintf("Purging all Cloudflare cache across %d zone(s)", r.Zones)
		}
		return "Purging all Cloudflare cache"
	}
}

// PlanPurge validates req against cfg and resolves its target without
// touching the CDN
func PlanPurge(cfg *configtypes.BridgeConfig, req PurgeRequest) (PurgeResult, error) {
	if cfg == nil || !cfg.Purge.IsEnabled() {
		return PurgeResult{}, ErrDisabled
	}

	switch {
	case len(req.URLs) > 0:
		return PurgeResult{Action: "purge_urls", Target: "url"}, nil
	case req.Zone != "":
		return PurgeResult{Action: "purge_everything", Target: "zone", ZoneID: req.Zone}, nil
	case req.Domain != "":
		zoneID, ok := zone.FromConfig(&cfg.Purge).ZoneForDomain(req.Domain)
		if !ok {
			return PurgeResult{Action: "none", Target: "domain"}, fmt.Errorf("%w: %s", ErrNoZoneForDomain, req.Domain)
		}
		return PurgeResult{Action: "purge_everything", Target: "domain", ZoneID: zoneID}, nil
	default:
		return PurgeResult{
			Action: "purge_everything",
			Target: "all",
			Zones:  len(zone.FromConfig(&cfg.Purge).AllConfiguredZones()),
		}, nil
	}
}

// ExecutePurge carries out a plan returned by PlanPurge
func ExecutePurge(ctx context.Context, purger ManualPurger, plan PurgeResult, req PurgeRequest) (PurgeResult, error) {
	res := plan
	switch plan.Target {
	case "url":
		res.Success = purger.PurgeURLs(ctx, req.URLs)
	case "zone", "domain":
		res.Success = purger.PurgeEverythingForZone(ctx, plan.ZoneID)
	default:
		res.Success = purger.PurgeEverything(ctx)
	}

	if !res.Success {
		return res, ErrPurgeFailed
	}
	return res, nil
}

// ManualPurge plans and runs an operator purge against the current configuration
func ManualPurge(ctx context.Context, cfg *configtypes.BridgeConfig, purger ManualPurger, req PurgeRequest) (PurgeResult, error) {
	plan, err := PlanPurge(cfg, req)
	if err != nil {
		return plan, err
	}
	return ExecutePurge(ctx, purger, plan, req)
}

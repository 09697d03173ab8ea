// Package zone maps purge URLs to the CDN zone that caches them.
//
// An empty zone map means single-zone mode: every URL belongs to the default
// zone and GroupByZone returns nil so callers issue one request for everything.
// With a map, lookups try the exact host, then the host without a leading
// "www.", then fall back to the default zone id.
package zone

import (
	"sort"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/urlutil"
)

// Group is the URL list sent to one zone
type Group struct {
	ZoneID string
	URLs   []string
}

// Grouping holds groups in the order their zone was first seen.
// URL order within a group follows input order.
type Grouping []Group

// Resolver is immutable; build a new one when the configuration changes
type Resolver struct {
	defaultZone string
	zones       map[string]string // normalized host -> zone id
	raw         map[string]string // keys as configured
}

// NewResolver builds a resolver. Map keys are normalized the same way URL hosts are.
func NewResolver(defaultZone string, zones map[string]string) *Resolver {
	r := &Resolver{
		defaultZone: defaultZone,
		zones:       make(map[string]string, len(zones)),
		raw:         make(map[string]string, len(zones)),
	}
	for domain, zoneID := range zones {
		r.raw[domain] = zoneID
		if host := urlutil.NormalizeHost(domain); host != "" {
			r.zones[host] = zoneID
		}
	}
	return r
}

// FromConfig builds a resolver from the purge block
func FromConfig(cfg *configtypes.PurgeConfig) *Resolver {
	return NewResolver(cfg.ZoneID, cfg.Zones)
}

// DefaultZone returns the catch-all zone id (may be empty)
func (r *Resolver) DefaultZone() string {
	return r.defaultZone
}

// MultiZone reports whether a zone map is configured
func (r *Resolver) MultiZone() bool {
	return len(r.zones) > 0
}

// ResolveZone returns the zone id responsible for rawURL.
// Unparseable URLs have an empty host and resolve to the default zone.
func (r *Resolver) ResolveZone(rawURL string) string {
	if len(r.zones) == 0 {
		return r.defaultZone
	}

	host := urlutil.HostnameFromURL(rawURL)
	if host != "" {
		if zoneID, ok := r.zones[host]; ok {
			return zoneID
		}
		if bare, stripped := urlutil.StripWWW(host); stripped {
			if zoneID, ok := r.zones[bare]; ok {
				return zoneID
			}
		}
	}

	return r.defaultZone
}

// AllConfiguredZones returns the distinct zone ids used as map values, sorted.
// The default zone is not included. Empty in single-zone mode.
func (r *Resolver) AllConfiguredZones() []string {
	if len(r.raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(r.raw))
	out := make([]string, 0, len(r.raw))
	for _, zoneID := range r.raw {
		if _, dup := seen[zoneID]; dup {
			continue
		}
		seen[zoneID] = struct{}{}
		out = append(out, zoneID)
	}
	sort.Strings(out)
	return out
}

// GroupByZone splits urls by zone. Returns nil in single-zone mode.
// URLs that resolve to an empty zone id (no match, no default) are dropped.
func (r *Resolver) GroupByZone(urls []string) Grouping {
	if len(r.zones) == 0 {
		return nil
	}

	index := make(map[string]int)
	var grouping Grouping
	for _, u := range urls {
		zoneID := r.ResolveZone(u)
		if zoneID == "" {
			continue
		}
		i, ok := index[zoneID]
		if !ok {
			i = len(grouping)
			index[zoneID] = i
			grouping = append(grouping, Group{ZoneID: zoneID})
		}
		grouping[i].URLs = append(grouping[i].URLs, u)
	}
	if grouping == nil {
		grouping = Grouping{}
	}
	return grouping
}

// ZoneForDomain is an exact lookup of a configured domain key (case-insensitive).
// No www stripping and no default fallback.
func (r *Resolver) ZoneForDomain(domain string) (string, bool) {
	if zoneID, ok := r.raw[domain]; ok {
		return zoneID, true
	}
	zoneID, ok := r.zones[urlutil.NormalizeHost(domain)]
	return zoneID, ok
}

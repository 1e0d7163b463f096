// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/qapulse/qapulse/services/telemetry/cache"
	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
	"github.com/qapulse/qapulse/services/telemetry/history"
	"github.com/qapulse/qapulse/services/telemetry/observability"
)

// Served is the outcome of one snapshot request: the document plus
// which tier actually produced it.
type Served struct {
	Snapshot  datatypes.Snapshot
	Mode      Mode
	FromCache bool
}

// Provider answers snapshot requests.
//
// A request names a preferred tier. The provider serves from cache when
// a fresh entry exists for that tier, otherwise produces a snapshot by
// walking the fallback chain downward from the preferred tier. Chain
// position never climbs back up within one request, and the result is
// cached under the requested tier so identical requests inside the TTL
// window are answered identically.
//
// Thread safety: safe for concurrent use. Concurrent cache misses for
// the same tier are collapsed into one production via singleflight.
type Provider struct {
	Live   Source
	Cloud  Source
	Static Source

	Cache   *cache.SnapshotCache
	History *history.Store
	Repos   []config.Repo
	Metrics *observability.TelemetryMetrics
	Logger  *slog.Logger

	group singleflight.Group
}

// produced carries a chain walk's outcome through singleflight.
type produced struct {
	snapshot datatypes.Snapshot
	mode     Mode
}

// GetSnapshot returns a snapshot for the requested tier. It fails only
// when the request context ends; every data-tier failure is absorbed by
// the fallback chain, bottoming out at a synthetic document.
func (p *Provider) GetSnapshot(ctx context.Context, requested Mode) (Served, error) {
	if snap, ok := p.Cache.Get(string(requested)); ok {
		p.countCache(requested, "hit")
		return Served{Snapshot: snap, Mode: requested, FromCache: true}, nil
	}
	p.countCache(requested, "miss")

	v, err, _ := p.group.Do(string(requested), func() (any, error) {
		snap, served, err := p.produce(ctx, requested)
		if err != nil {
			return nil, err
		}
		p.Cache.Put(string(requested), snap)
		return produced{snapshot: snap, mode: served}, nil
	})
	if err != nil {
		return Served{}, err
	}

	result := v.(produced)
	p.countRequest(requested, result.mode)
	return Served{Snapshot: result.snapshot, Mode: result.mode}, nil
}

// Refresh drops every cached snapshot and forces a fresh live
// collection.
func (p *Provider) Refresh(ctx context.Context) (Served, error) {
	p.Cache.InvalidateAll()
	return p.GetSnapshot(ctx, ModeLive)
}

// InvalidateStatic drops the cached static-tier snapshot. The file
// watcher calls this when the snapshot file changes on disk.
func (p *Provider) InvalidateStatic() {
	p.Cache.Invalidate(string(ModeStatic))
}

// produce walks the chain downward from the requested tier until a tier
// yields a valid snapshot. Each skipped tier contributes a note so the
// served document explains its own provenance.
func (p *Provider) produce(ctx context.Context, requested Mode) (datatypes.Snapshot, Mode, error) {
	notes := []string{}

	for mode := requested; ; {
		snap, err := p.source(mode).Fetch(ctx)
		if err == nil {
			snap.Summary.Notes = joinNotes(fmt.Sprintf("source: %s", mode), notes)
			if mode != requested {
				// A fallback answer is stale by definition. Cap the
				// headline status at degraded so a healthy document
				// from a lower tier cannot mask the outage that put
				// us there.
				snap.Summary.OverallStatus = snap.Summary.OverallStatus.Worse(datatypes.HealthDegraded)
			}
			if mode == ModeLive {
				p.recordHistory(ctx, snap)
			}
			return snap, mode, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return datatypes.Snapshot{}, "", ctxErr
		}

		notes = append(notes, fmt.Sprintf("%s unavailable: %v", mode, err))
		p.logger().WarnContext(ctx, "snapshot tier failed",
			"tier", string(mode), "error", err)

		next, ok := mode.next()
		if !ok {
			// Terminal: the static tier failed too.
			p.countFallback(mode, ModeSynthetic)
			snap := Synthetic(p.Repos, joinNotes("source: synthetic", notes))
			return snap, ModeSynthetic, nil
		}
		p.countFallback(mode, next)
		mode = next
	}
}

func (p *Provider) source(mode Mode) Source {
	switch mode {
	case ModeLive:
		return p.Live
	case ModeCloud:
		return p.Cloud
	default:
		return p.Static
	}
}

// recordHistory appends a live snapshot to the history store. Lower
// tiers replay documents somebody already recorded, so only live
// collections append. Failures are logged, never propagated; history is
// an observer of collection, not a participant.
func (p *Provider) recordHistory(ctx context.Context, snap datatypes.Snapshot) {
	if p.History == nil {
		return
	}
	if err := p.History.Append(ctx, snap); err != nil {
		p.logger().WarnContext(ctx, "history append failed", "error", err)
	}
}

func joinNotes(primary string, rest []string) string {
	if len(rest) == 0 {
		return primary
	}
	return primary + "; " + strings.Join(rest, "; ")
}

func (p *Provider) countCache(mode Mode, result string) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.CacheEventsTotal.WithLabelValues(string(mode), result).Inc()
}

func (p *Provider) countFallback(from, to Mode) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.FallbacksTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (p *Provider) countRequest(requested, served Mode) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.SnapshotRequestsTotal.WithLabelValues(string(requested), string(served)).Inc()
}

func (p *Provider) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package normalize merges extracted metrics payloads into project
// records.
//
// The merge is pure and non-destructive: a field present in the payload
// overrides, a field absent from the payload never erases a previously
// known value. Rates are never recomputed here: if the payload omits
// passRate, this layer does not derive one from pass/total. That keeps
// the merge a faithful record of what the evidence actually said.
package normalize

import "github.com/qapulse/qapulse/services/telemetry/datatypes"

// Merge overlays a sanitized payload onto a base project record and
// returns a new record. base is not mutated; pointer-valued sections in
// the result are fresh copies so snapshots stay immutable.
//
// A nil payload returns a copy of base unchanged.
func Merge(base datatypes.ProjectMetric, payload *datatypes.RawMetrics) datatypes.ProjectMetric {
	merged := base
	merged.Tests = cloneTests(base.Tests)
	merged.Performance = clonePerformance(base.Performance)
	merged.Security = cloneSecurity(base.Security)

	if payload == nil {
		return merged
	}

	if payload.Tests != nil {
		t := merged.Tests
		if t == nil {
			t = &datatypes.TestStats{}
			merged.Tests = t
		}
		overlayInt(&t.Total, payload.Tests.Total)
		overlayInt(&t.Pass, payload.Tests.Pass)
		overlayInt(&t.Fail, payload.Tests.Fail)
		overlayFloat(&t.PassRate, payload.Tests.PassRate)
		overlayFloat(&t.FlakeRate, payload.Tests.FlakeRate)
	}

	if payload.Performance != nil && payload.Performance.Lighthouse != nil {
		if merged.Performance == nil {
			merged.Performance = &datatypes.Performance{}
		}
		lh := merged.Performance.Lighthouse
		if lh == nil {
			lh = &datatypes.Lighthouse{}
			merged.Performance.Lighthouse = lh
		}
		raw := payload.Performance.Lighthouse
		overlayFloat(&lh.Performance, raw.Performance)
		overlayFloat(&lh.Accessibility, raw.Accessibility)
		overlayFloat(&lh.BestPractices, raw.BestPractices)
		overlayFloat(&lh.SEO, raw.SEO)
	}

	if payload.Security != nil {
		s := merged.Security
		if s == nil {
			s = &datatypes.SecurityCounts{}
			merged.Security = s
		}
		overlayInt(&s.Critical, payload.Security.Critical)
		overlayInt(&s.High, payload.Security.High)
		overlayInt(&s.Medium, payload.Security.Medium)
		overlayInt(&s.Low, payload.Security.Low)
	}

	return merged
}

func overlayInt(dst **int, src *int) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func overlayFloat(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func cloneTests(t *datatypes.TestStats) *datatypes.TestStats {
	if t == nil {
		return nil
	}
	c := &datatypes.TestStats{}
	overlayInt(&c.Total, t.Total)
	overlayInt(&c.Pass, t.Pass)
	overlayInt(&c.Fail, t.Fail)
	overlayFloat(&c.PassRate, t.PassRate)
	overlayFloat(&c.FlakeRate, t.FlakeRate)
	return c
}

func clonePerformance(p *datatypes.Performance) *datatypes.Performance {
	if p == nil {
		return nil
	}
	c := &datatypes.Performance{}
	if p.Lighthouse != nil {
		lh := &datatypes.Lighthouse{}
		overlayFloat(&lh.Performance, p.Lighthouse.Performance)
		overlayFloat(&lh.Accessibility, p.Lighthouse.Accessibility)
		overlayFloat(&lh.BestPractices, p.Lighthouse.BestPractices)
		overlayFloat(&lh.SEO, p.Lighthouse.SEO)
		c.Lighthouse = lh
	}
	return c
}

func cloneSecurity(s *datatypes.SecurityCounts) *datatypes.SecurityCounts {
	if s == nil {
		return nil
	}
	c := &datatypes.SecurityCounts{}
	overlayInt(&c.Critical, s.Critical)
	overlayInt(&c.High, s.High)
	overlayInt(&c.Medium, s.Medium)
	overlayInt(&c.Low, s.Low)
	return c
}

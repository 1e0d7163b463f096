// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// ValidationError
// =============================================================================

// ValidationError reports a payload that could not be accepted as
// evidence: either the document is not a JSON object at all, or a
// section was structurally unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid metrics payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid metrics payload field %q: %s", e.Field, e.Reason)
}

// =============================================================================
// RawMetrics
// =============================================================================

// RawMetrics is the loosely-typed metrics document extracted from a CI
// evidence artifact. It is partially trusted: every field is a pointer
// so "absent" and "zero" stay distinguishable, and Sanitize drops any
// field that fails its range check rather than clamping it.
//
// Unknown extra fields in the payload are ignored. A field of the wrong
// JSON type is dropped, not coerced (see ParseRawMetrics).
type RawMetrics struct {
	Tests       *RawTestStats   `json:"tests,omitempty"`
	Performance *RawPerformance `json:"performance,omitempty"`
	Security    *RawSecurity    `json:"security,omitempty"`
}

// RawTestStats mirrors TestStats with validation tags.
type RawTestStats struct {
	Total     *int     `json:"total,omitempty" validate:"omitempty,gte=0"`
	Pass      *int     `json:"pass,omitempty" validate:"omitempty,gte=0"`
	Fail      *int     `json:"fail,omitempty" validate:"omitempty,gte=0"`
	PassRate  *float64 `json:"passRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	FlakeRate *float64 `json:"flakeRate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// RawPerformance mirrors Performance.
type RawPerformance struct {
	Lighthouse *RawLighthouse `json:"lighthouse,omitempty"`
}

// RawLighthouse mirrors Lighthouse; every score is a fraction.
type RawLighthouse struct {
	Performance   *float64 `json:"performance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Accessibility *float64 `json:"accessibility,omitempty" validate:"omitempty,gte=0,lte=1"`
	BestPractices *float64 `json:"bestPractices,omitempty" validate:"omitempty,gte=0,lte=1"`
	SEO           *float64 `json:"seo,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// RawSecurity mirrors SecurityCounts.
type RawSecurity struct {
	Critical *int `json:"critical,omitempty" validate:"omitempty,gte=0"`
	High     *int `json:"high,omitempty" validate:"omitempty,gte=0"`
	Medium   *int `json:"medium,omitempty" validate:"omitempty,gte=0"`
	Low      *int `json:"low,omitempty" validate:"omitempty,gte=0"`
}

// validate is shared; validator.Validate is safe for concurrent use.
var validate = validator.New()

// ParseRawMetrics decodes an evidence payload tolerantly.
//
// The document must be a JSON object, otherwise a *ValidationError is
// returned. Within the object, each known field is decoded on its own:
// a field of the wrong type is dropped and reported in the returned
// dropped list instead of failing the whole document. Unknown fields
// are ignored.
func ParseRawMetrics(data []byte) (*RawMetrics, []string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, &ValidationError{Reason: "not a JSON object"}
	}

	raw := &RawMetrics{}
	var dropped []string

	if msg, ok := top["tests"]; ok {
		var t RawTestStats
		if fields, bad := decodeSection(msg, "tests", &t); bad != "" {
			dropped = append(dropped, bad)
		} else {
			raw.Tests = &t
			dropped = append(dropped, fields...)
		}
	}
	if msg, ok := top["performance"]; ok {
		var perf map[string]json.RawMessage
		if err := json.Unmarshal(msg, &perf); err != nil {
			dropped = append(dropped, "performance")
		} else if lhMsg, ok := perf["lighthouse"]; ok {
			var lh RawLighthouse
			if fields, bad := decodeSection(lhMsg, "performance.lighthouse", &lh); bad != "" {
				dropped = append(dropped, bad)
			} else {
				raw.Performance = &RawPerformance{Lighthouse: &lh}
				dropped = append(dropped, fields...)
			}
		}
	}
	if msg, ok := top["security"]; ok {
		var s RawSecurity
		if fields, bad := decodeSection(msg, "security", &s); bad != "" {
			dropped = append(dropped, bad)
		} else {
			raw.Security = &s
			dropped = append(dropped, fields...)
		}
	}

	return raw, dropped, nil
}

// decodeSection decodes one payload section field by field. Wrong-typed
// fields are dropped and returned by JSON path; if the section itself is
// not an object, its own path is returned as bad.
func decodeSection(msg json.RawMessage, path string, dst any) (droppedFields []string, badSection string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(msg, &obj); err != nil {
		return nil, path
	}
	// First pass: decode the whole section; on success nothing is dropped.
	if err := json.Unmarshal(msg, dst); err == nil {
		return nil, ""
	}
	// Field-wise salvage: re-encode only the fields that decode cleanly.
	clean := make(map[string]json.RawMessage, len(obj))
	for key, val := range obj {
		probe := map[string]json.RawMessage{key: val}
		buf, _ := json.Marshal(probe)
		// Decoding a single field into a throwaway copy tells us whether
		// the field's type matches the struct.
		throwaway := newZero(dst)
		if err := json.Unmarshal(buf, throwaway); err != nil {
			droppedFields = append(droppedFields, path+"."+key)
			continue
		}
		clean[key] = val
	}
	buf, _ := json.Marshal(clean)
	if err := json.Unmarshal(buf, dst); err != nil {
		return nil, path
	}
	return droppedFields, ""
}

// newZero returns a fresh zero value of the same concrete type as dst.
func newZero(dst any) any {
	switch dst.(type) {
	case *RawTestStats:
		return &RawTestStats{}
	case *RawLighthouse:
		return &RawLighthouse{}
	case *RawSecurity:
		return &RawSecurity{}
	default:
		return &struct{}{}
	}
}

// Sanitize enforces range rules on a parsed payload, dropping any field
// whose value is out of range. The policy is reject-not-clamp: a
// passRate of 1.4 is removed so the previously known value survives the
// merge. Returns the JSON paths of dropped fields.
func (r *RawMetrics) Sanitize() []string {
	var dropped []string
	if r.Tests != nil {
		dropped = append(dropped, sanitizeStruct(r.Tests, "tests", func(name string) {
			clearTestField(r.Tests, name)
		})...)
	}
	if r.Performance != nil && r.Performance.Lighthouse != nil {
		lh := r.Performance.Lighthouse
		dropped = append(dropped, sanitizeStruct(lh, "performance.lighthouse", func(name string) {
			clearLighthouseField(lh, name)
		})...)
	}
	if r.Security != nil {
		dropped = append(dropped, sanitizeStruct(r.Security, "security", func(name string) {
			clearSecurityField(r.Security, name)
		})...)
	}
	return dropped
}

// sanitizeStruct runs the validator and clears each offending field via
// the supplied callback, returning the dropped JSON paths.
func sanitizeStruct(s any, path string, clear func(fieldName string)) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	var dropped []string
	for _, fe := range verrs {
		clear(fe.StructField())
		dropped = append(dropped, path+"."+jsonNameFor(fe.StructField()))
	}
	return dropped
}

func clearTestField(t *RawTestStats, name string) {
	switch name {
	case "Total":
		t.Total = nil
	case "Pass":
		t.Pass = nil
	case "Fail":
		t.Fail = nil
	case "PassRate":
		t.PassRate = nil
	case "FlakeRate":
		t.FlakeRate = nil
	}
}

func clearLighthouseField(l *RawLighthouse, name string) {
	switch name {
	case "Performance":
		l.Performance = nil
	case "Accessibility":
		l.Accessibility = nil
	case "BestPractices":
		l.BestPractices = nil
	case "SEO":
		l.SEO = nil
	}
}

func clearSecurityField(s *RawSecurity, name string) {
	switch name {
	case "Critical":
		s.Critical = nil
	case "High":
		s.High = nil
	case "Medium":
		s.Medium = nil
	case "Low":
		s.Low = nil
	}
}

// jsonNameFor maps a Go field name to its JSON name for drop reporting.
func jsonNameFor(structField string) string {
	switch structField {
	case "PassRate":
		return "passRate"
	case "FlakeRate":
		return "flakeRate"
	case "BestPractices":
		return "bestPractices"
	case "SEO":
		return "seo"
	default:
		// Remaining fields are single words; lowercase the first rune.
		if structField == "" {
			return structField
		}
		return string(structField[0]|0x20) + structField[1:]
	}
}

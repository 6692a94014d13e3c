package scheduler

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// DomainConfig is a validated per-domain throttle override
type DomainConfig struct {
	// Window is the rolling window in seconds
	Window float64
	// Hits is the raw hit budget per window
	Hits int64
	// Scale optionally shrinks the budget; effective hits =
	// floor(hits * clamp(scale, 0, 1))
	Scale *float64
}

// EffectiveHits applies the scale knob to the hit budget
func (d DomainConfig) EffectiveHits() int64 {
	if d.Scale == nil {
		return d.Hits
	}
	return int64(math.Floor(float64(d.Hits) * fitScale(*d.Scale)))
}

// fitScale clamps a scale into [0, 1]
func fitScale(scale float64) float64 {
	if scale >= 1 {
		return 1.0
	}
	if scale <= 0 {
		return 0.0
	}
	return scale
}

// ParseDomainConfig parses a config blob into the override map.
// Entries missing window or hits are dropped silently; unrecognized
// keys are ignored. A missing domains map yields an empty result.
func ParseDomainConfig(blob string) (map[string]DomainConfig, error) {
	var doc struct {
		Domains map[string]map[string]interface{} `yaml:"domains"`
	}
	if err := yaml.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse domain config: %w", err)
	}

	overrides := make(map[string]DomainConfig, len(doc.Domains))
	for domain, entry := range doc.Domains {
		window, okWindow := asFloat(entry["window"])
		hits, okHits := asInt(entry["hits"])
		if !okWindow || !okHits {
			continue
		}

		dc := DomainConfig{Window: window, Hits: hits}
		if raw, ok := entry["scale"]; ok {
			if scale, ok := asFloat(raw); ok {
				dc.Scale = &scale
			}
		}
		overrides[domain] = dc
	}

	return overrides, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

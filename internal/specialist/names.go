package specialist

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

// Core specialist names.
const (
	Geo            = "geo_agent"
	Weather        = "weather_agent"
	Permits        = "permits_agent"
	Safety         = "safety_agent"
	BLM            = "blm_agent"
	Trail          = "trail_agent"
	RoutePlanning  = "route_planning_agent"
	Bikepacking    = "bikepacking_agent"
	Advocacy       = "advocacy_agent"
	Transportation = "transportation_agent"
	Accommodation  = "accommodation_agent"
	Food           = "food_agent"
	Gear           = "gear_agent"
	Community      = "community_agent"
	Photography    = "photography_agent"
	Historical     = "historical_agent"
	Planning       = "planning_agent"
)

// Suffix is carried by every specialist name.
const Suffix = "_agent"

// coreOrder lists the core specialists in dispatch priority order: location
// and conditions first, then route and logistics, then content.
var coreOrder = []string{
	Geo,
	Weather,
	Permits,
	Safety,
	BLM,
	Trail,
	RoutePlanning,
	Bikepacking,
	Advocacy,
	Transportation,
	Accommodation,
	Food,
	Gear,
	Community,
	Photography,
	Historical,
	Planning,
}

// Core returns the core specialist names in priority order.
func Core() []string {
	out := make([]string, len(coreOrder))
	copy(out, coreOrder)
	return out
}

// IsCore reports whether name is a core specialist.
func IsCore(name string) bool {
	for _, n := range coreOrder {
		if n == name {
			return true
		}
	}
	return false
}

var (
	separatorPattern = regexp.MustCompile(`[\s\-]+`)
	namePattern      = regexp.MustCompile(`^[a-z][a-z0-9_]*_agent$`)
)

// Normalize converts a human or model supplied name such as
// "Route Planning Agent" to its canonical form "route_planning_agent".
// Group placeholders like "location_specific_agents" are rejected.
func Normalize(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = separatorPattern.ReplaceAllString(n, "_")
	n = strings.Trim(n, "_")

	if n == "" {
		return "", errors.NewValidationError("specialist name is empty").WithField("specialist")
	}
	if strings.HasSuffix(n, "agents") {
		return "", errors.NewValidationError("not a specialist name").WithField("specialist").WithValue(name)
	}

	base := strings.TrimSuffix(n, "agent")
	base = strings.TrimRight(base, "_")
	if base == "" {
		return "", errors.NewValidationError("not a specialist name").WithField("specialist").WithValue(name)
	}
	n = base + Suffix

	if !namePattern.MatchString(n) {
		return "", errors.NewValidationError("invalid specialist name").WithField("specialist").WithValue(name)
	}
	return n, nil
}

// NormalizeAll normalizes names, dropping invalid entries and duplicates
// while keeping first-seen order. The dropped inputs are returned.
func NormalizeAll(names []string) (valid, dropped []string) {
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		n, err := Normalize(raw)
		if err != nil {
			dropped = append(dropped, raw)
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		valid = append(valid, n)
	}
	return valid, dropped
}

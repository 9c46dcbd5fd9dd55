package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// maxTrails caps the trails returned from one lookup.
const maxTrails = 20

// Route types queried per activity.
var overpassRoutes = map[string]string{
	"mountain_biking": "mtb|bicycle",
	"bikepacking":     "mtb|bicycle",
	"gravel":          "bicycle",
	"hiking":          "hiking|foot",
	"backpacking":     "hiking|foot",
	"trail_running":   "hiking|foot|running",
}

type overpassResponse struct {
	Elements []struct {
		Type string            `json:"type"`
		ID   int64             `json:"id"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Trails finds named trails and routes within radiusKm of a point.
func (c *Client) Trails(ctx context.Context, lat, lon, radiusKm float64, activity string) ([]state.Trail, error) {
	if radiusKm <= 0 {
		radiusKm = 25
	}
	routes, ok := overpassRoutes[activity]
	if !ok {
		routes = "hiking|mtb|bicycle|foot"
	}
	query := overpassQuery(lat, lon, radiusKm*1000, routes)

	params := map[string]any{
		"point":    fmt.Sprintf("%.3f,%.3f", lat, lon),
		"radius":   radiusKm,
		"activity": activity,
	}
	raw, err := c.caller.Call(ctx, EndpointOverpass, params, TrailsTTL, func(ctx context.Context) (json.RawMessage, error) {
		form := url.Values{"data": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.overpass+"/interpreter", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, errors.NewToolError(EndpointOverpass, "build request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.do(EndpointOverpass, req)
	})
	if err != nil {
		return nil, err
	}

	var resp overpassResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.NewToolError(EndpointOverpass, "decode response", err)
	}

	seen := make(map[string]bool)
	var trails []state.Trail
	for _, el := range resp.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		trails = append(trails, state.Trail{
			Name:       name,
			LengthMi:   lengthMiles(el.Tags["distance"]),
			Difficulty: difficulty(el.Tags),
			Surface:    el.Tags["surface"],
			Notes:      fmt.Sprintf("https://www.openstreetmap.org/%s/%d", el.Type, el.ID),
		})
		if len(trails) == maxTrails {
			break
		}
	}
	return trails, nil
}

func overpassQuery(lat, lon, radiusM float64, routes string) string {
	around := fmt.Sprintf("(around:%.0f,%.5f,%.5f)", radiusM, lat, lon)
	return fmt.Sprintf(`[out:json][timeout:25];
(
  relation["route"~"%s"]["name"]%s;
  way["highway"~"path|track|bridleway|cycleway"]["name"]%s;
);
out tags %d;`, routes, around, around, maxTrails*3)
}

// lengthMiles parses an OSM distance tag, which is in kilometers.
func lengthMiles(distance string) float64 {
	distance = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(distance), "km"))
	km, err := strconv.ParseFloat(distance, 64)
	if err != nil {
		return 0
	}
	return km * 0.621371
}

func difficulty(tags map[string]string) string {
	if s, ok := tags["mtb:scale"]; ok {
		switch s {
		case "0", "1":
			return "easy"
		case "2", "3":
			return "intermediate"
		default:
			return "difficult"
		}
	}
	switch tags["sac_scale"] {
	case "hiking":
		return "easy"
	case "mountain_hiking":
		return "intermediate"
	case "demanding_mountain_hiking", "alpine_hiking", "demanding_alpine_hiking", "difficult_alpine_hiking":
		return "difficult"
	}
	return ""
}

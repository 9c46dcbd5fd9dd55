package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		State   string `json:"state"`
		Country string `json:"country_code"`
	} `json:"address"`
}

// Geocode resolves a place name. Lookups are biased to the United States.
func (c *Client) Geocode(ctx context.Context, query string) (*state.GeoResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.NewValidationError("location is required").WithField("location")
	}

	params := map[string]any{"q": strings.ToLower(query), "countrycodes": "us"}
	raw, err := c.caller.Call(ctx, EndpointNominatim, params, GeocodeTTL, func(ctx context.Context) (json.RawMessage, error) {
		v := url.Values{}
		v.Set("q", query)
		v.Set("format", "jsonv2")
		v.Set("limit", "5")
		v.Set("countrycodes", "us")
		v.Set("addressdetails", "1")
		return c.get(ctx, EndpointNominatim, c.nominatim+"/search?"+v.Encode())
	})
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, errors.NewToolError(EndpointNominatim, "decode response", err)
	}
	if len(places) == 0 {
		return nil, errors.NewNotFoundError("location", query)
	}

	// Prefer an Arizona match when there are several.
	best := places[0]
	for _, p := range places {
		if strings.EqualFold(p.Address.State, "arizona") {
			best = p
			break
		}
	}

	lat, err := strconv.ParseFloat(best.Lat, 64)
	if err != nil {
		return nil, errors.NewToolError(EndpointNominatim, fmt.Sprintf("bad latitude %q", best.Lat), err)
	}
	lon, err := strconv.ParseFloat(best.Lon, 64)
	if err != nil {
		return nil, errors.NewToolError(EndpointNominatim, fmt.Sprintf("bad longitude %q", best.Lon), err)
	}

	return &state.GeoResult{
		Query:       query,
		DisplayName: best.DisplayName,
		Lat:         lat,
		Lon:         lon,
		Region:      best.Address.State,
	}, nil
}

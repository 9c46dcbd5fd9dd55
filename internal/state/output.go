package state

import (
	"encoding/json"
	"fmt"
)

// OutputKind tags the payload carried by an Output.
type OutputKind string

// Output kinds.
const (
	KindGeo     OutputKind = "geo"
	KindWeather OutputKind = "weather"
	KindTrails  OutputKind = "trail_list"
	KindPermits OutputKind = "permit_list"
	KindLodging OutputKind = "lodging_list"
	KindFood    OutputKind = "food_list"
	KindGear    OutputKind = "gear_list"
	KindRoute   OutputKind = "route"
	KindGuide   OutputKind = "guide"
	KindRaw     OutputKind = "raw"
	KindEmpty   OutputKind = "empty"
)

// Payload is implemented by every specialist result type.
type Payload interface {
	OutputKind() OutputKind
}

// Output is one specialist's result: a tagged variant whose payload type
// is determined by Kind. The zero Output is empty.
type Output struct {
	Payload Payload
}

// Kind returns the payload's tag, or KindEmpty.
func (o Output) Kind() OutputKind {
	if o.Payload == nil {
		return KindEmpty
	}
	return o.Payload.OutputKind()
}

// Empty reports whether the output carries no payload.
func (o Output) Empty() bool {
	return o.Payload == nil
}

// NewOutput wraps p.
func NewOutput(p Payload) Output {
	return Output{Payload: p}
}

type outputJSON struct {
	Kind OutputKind      `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the output as {"kind": ..., "data": ...}.
func (o Output) MarshalJSON() ([]byte, error) {
	if o.Payload == nil {
		return json.Marshal(outputJSON{Kind: KindEmpty})
	}
	data, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(outputJSON{Kind: o.Payload.OutputKind(), Data: data})
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (o *Output) UnmarshalJSON(b []byte) error {
	var raw outputJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var p Payload
	switch raw.Kind {
	case KindEmpty, "":
		o.Payload = nil
		return nil
	case KindGeo:
		p = &GeoResult{}
	case KindWeather:
		p = &WeatherResult{}
	case KindTrails:
		p = &TrailList{}
	case KindPermits:
		p = &PermitList{}
	case KindLodging:
		p = &LodgingList{}
	case KindFood:
		p = &FoodList{}
	case KindGear:
		p = &GearList{}
	case KindRoute:
		p = &RoutePlan{}
	case KindGuide:
		p = &Guide{}
	case KindRaw:
		p = &Raw{}
	default:
		return fmt.Errorf("unknown output kind %q", raw.Kind)
	}
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, p); err != nil {
			return fmt.Errorf("decode %s output: %w", raw.Kind, err)
		}
	}
	o.Payload = p
	return nil
}

// GeoResult is a resolved location.
type GeoResult struct {
	Query       string  `json:"query"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Region      string  `json:"region,omitempty"`
	ElevationFt int     `json:"elevation_ft,omitempty"`
}

func (*GeoResult) OutputKind() OutputKind { return KindGeo }

// ForecastDay is one day of a weather forecast.
type ForecastDay struct {
	Date      string  `json:"date"`
	Summary   string  `json:"summary"`
	HighF     float64 `json:"high_f"`
	LowF      float64 `json:"low_f"`
	PrecipPct int     `json:"precip_pct,omitempty"`
}

// WeatherResult is a forecast for the trip location.
type WeatherResult struct {
	Location string        `json:"location"`
	Summary  string        `json:"summary"`
	Days     []ForecastDay `json:"days,omitempty"`
	Alerts   []string      `json:"alerts,omitempty"`
}

func (*WeatherResult) OutputKind() OutputKind { return KindWeather }

// Trail is a candidate trail or route segment.
type Trail struct {
	Name       string  `json:"name"`
	LengthMi   float64 `json:"length_mi,omitempty"`
	Difficulty string  `json:"difficulty,omitempty"`
	Surface    string  `json:"surface,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// TrailList is the trail specialist's result.
type TrailList struct {
	Trails  []Trail `json:"trails"`
	Summary string  `json:"summary,omitempty"`
}

func (*TrailList) OutputKind() OutputKind { return KindTrails }

// Permit describes a permit or pass a trip requires.
type Permit struct {
	Name     string `json:"name"`
	Agency   string `json:"agency,omitempty"`
	Required bool   `json:"required"`
	Notes    string `json:"notes,omitempty"`
}

// PermitList is the permits specialist's result.
type PermitList struct {
	Permits []Permit `json:"permits"`
	Summary string   `json:"summary,omitempty"`
}

func (*PermitList) OutputKind() OutputKind { return KindPermits }

// Lodging is a place to stay.
type Lodging struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"` // campground, motel, dispersed
	Price string `json:"price,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// LodgingList is the accommodation specialist's result.
type LodgingList struct {
	Options []Lodging `json:"options"`
	Summary string    `json:"summary,omitempty"`
}

func (*LodgingList) OutputKind() OutputKind { return KindLodging }

// FoodStop is a resupply point or restaurant.
type FoodStop struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// FoodList is the food specialist's result.
type FoodList struct {
	Options []FoodStop `json:"options"`
	Summary string     `json:"summary,omitempty"`
}

func (*FoodList) OutputKind() OutputKind { return KindFood }

// GearItem is one checklist entry.
type GearItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Required bool   `json:"required"`
}

// GearList is the gear specialist's result.
type GearList struct {
	Items   []GearItem `json:"items"`
	Summary string     `json:"summary,omitempty"`
}

func (*GearList) OutputKind() OutputKind { return KindGear }

// RouteSegment is one leg of a multi-day route.
type RouteSegment struct {
	Day     int     `json:"day"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Miles   float64 `json:"miles,omitempty"`
	GainFt  int     `json:"gain_ft,omitempty"`
	Surface string  `json:"surface,omitempty"`
}

// RoutePlan is the route-planning or bikepacking specialist's result.
type RoutePlan struct {
	Segments   []RouteSegment `json:"segments"`
	TotalMiles float64        `json:"total_miles,omitempty"`
	Summary    string         `json:"summary,omitempty"`
}

func (*RoutePlan) OutputKind() OutputKind { return KindRoute }

// Guide is free-form narrative advice, used by the content specialists
// and the location knowledge agents.
type Guide struct {
	Topic      string            `json:"topic"`
	Summary    string            `json:"summary"`
	Highlights []string          `json:"highlights,omitempty"`
	Sections   map[string]string `json:"sections,omitempty"`
}

func (*Guide) OutputKind() OutputKind { return KindGuide }

// Raw is unprocessed tool output kept when an enhancement step failed.
type Raw struct {
	Source string          `json:"source,omitempty"`
	Data   json.RawMessage `json:"data"`
}

func (*Raw) OutputKind() OutputKind { return KindRaw }

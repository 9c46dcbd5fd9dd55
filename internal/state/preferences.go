package state

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

// Preferences are the optional structured hints supplied with a request.
// Unknown keys are kept in Extra.
type Preferences struct {
	Region        string         `json:"region,omitempty" mapstructure:"region"`
	DurationDays  int            `json:"duration_days,omitempty" mapstructure:"duration_days"`
	SkillLevel    string         `json:"skill_level,omitempty" mapstructure:"skill_level"`
	ActivityType  string         `json:"activity_type,omitempty" mapstructure:"activity_type"`
	AdventureType string         `json:"adventure_type,omitempty" mapstructure:"adventure_type"`
	GroupSize     int            `json:"group_size,omitempty" mapstructure:"group_size"`
	Budget        string         `json:"budget,omitempty" mapstructure:"budget"`
	StartDate     string         `json:"start_date,omitempty" mapstructure:"start_date"`
	Extra         map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// DecodePreferences converts free-form hints into Preferences. Numeric
// strings are accepted for numeric fields ("10" days).
func DecodePreferences(hints map[string]any) (Preferences, error) {
	var p Preferences
	if len(hints) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(hints); err != nil {
		return p, errors.NewValidationError("invalid preferences").WithCause(err)
	}
	if p.DurationDays < 0 {
		return p, errors.NewValidationError("duration_days must not be negative").
			WithField("duration_days").WithValue(p.DurationDays)
	}
	return p, nil
}

// Merge fills empty fields of p from hints; fields already set on p win.
func (p Preferences) Merge(hints Preferences) Preferences {
	if p.Region == "" {
		p.Region = hints.Region
	}
	if p.DurationDays == 0 {
		p.DurationDays = hints.DurationDays
	}
	if p.SkillLevel == "" {
		p.SkillLevel = hints.SkillLevel
	}
	if p.ActivityType == "" {
		p.ActivityType = hints.ActivityType
	}
	if p.AdventureType == "" {
		p.AdventureType = hints.AdventureType
	}
	if p.GroupSize == 0 {
		p.GroupSize = hints.GroupSize
	}
	if p.Budget == "" {
		p.Budget = hints.Budget
	}
	if p.StartDate == "" {
		p.StartDate = hints.StartDate
	}
	if len(hints.Extra) > 0 {
		extra := make(map[string]any, len(p.Extra)+len(hints.Extra))
		for k, v := range hints.Extra {
			extra[k] = v
		}
		for k, v := range p.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	return p
}

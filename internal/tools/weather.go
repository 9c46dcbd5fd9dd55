package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name            string  `json:"name"`
	StartTime       string  `json:"startTime"`
	IsDaytime       bool    `json:"isDaytime"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
	ShortForecast   string  `json:"shortForecast"`
	Precipitation   struct {
		Value *int `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

// Forecast returns the multi-day forecast for a point. It makes two
// requests (point metadata, then the gridpoint forecast) that are cached
// together.
func (c *Client) Forecast(ctx context.Context, location string, lat, lon float64) (*state.WeatherResult, error) {
	point := fmt.Sprintf("%.4f,%.4f", lat, lon)
	raw, err := c.caller.Call(ctx, EndpointWeatherGov, map[string]any{"point": point}, ForecastTTL, func(ctx context.Context) (json.RawMessage, error) {
		meta, err := c.get(ctx, EndpointWeatherGov, c.weather+"/points/"+point)
		if err != nil {
			return nil, err
		}
		var pts pointsResponse
		if err := json.Unmarshal(meta, &pts); err != nil {
			return nil, errors.NewToolError(EndpointWeatherGov, "decode points", err)
		}
		if pts.Properties.Forecast == "" {
			return nil, errors.NewToolError(EndpointWeatherGov, "no forecast for point "+point, errors.ErrEmptyResponse)
		}
		return c.get(ctx, EndpointWeatherGov, pts.Properties.Forecast)
	})
	if err != nil {
		return nil, err
	}

	var fc forecastResponse
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, errors.NewToolError(EndpointWeatherGov, "decode forecast", err)
	}
	return summarizeForecast(location, fc.Properties.Periods), nil
}

// summarizeForecast folds day and night periods into one entry per date.
func summarizeForecast(location string, periods []forecastPeriod) *state.WeatherResult {
	res := &state.WeatherResult{Location: location}
	index := make(map[string]int)

	for _, p := range periods {
		date := p.StartTime
		if len(date) >= 10 {
			date = date[:10]
		}
		temp := p.Temperature
		if strings.EqualFold(p.TemperatureUnit, "C") {
			temp = temp*9/5 + 32
		}

		i, ok := index[date]
		if !ok {
			res.Days = append(res.Days, state.ForecastDay{Date: date, HighF: temp, LowF: temp})
			i = len(res.Days) - 1
			index[date] = i
		}
		day := &res.Days[i]
		if p.IsDaytime {
			day.HighF = temp
			day.Summary = p.ShortForecast
		} else {
			day.LowF = temp
			if day.Summary == "" {
				day.Summary = p.ShortForecast
			}
		}
		if v := p.Precipitation.Value; v != nil && *v > day.PrecipPct {
			day.PrecipPct = *v
		}
		lower := strings.ToLower(p.ShortForecast)
		if strings.Contains(lower, "thunderstorm") || strings.Contains(lower, "snow") || strings.Contains(lower, "flood") {
			res.Alerts = append(res.Alerts, fmt.Sprintf("%s: %s", p.Name, p.ShortForecast))
		}
	}

	if len(res.Days) > 0 {
		first := res.Days[0]
		res.Summary = fmt.Sprintf("%s, high %.0fF, low %.0fF", first.Summary, first.HighF, first.LowF)
	}
	return res
}

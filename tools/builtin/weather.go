package builtin

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
)

// MsgWeatherNotConfigured is returned when no weather API key is set.
const MsgWeatherNotConfigured = "Weather service is not configured by the administrator."

func weatherTool(d Deps) tools.Definition {
	w := &weather{client: d.HTTP, cfg: d.Weather, logger: d.Logger}
	return tools.Definition{
		Name:        "get_current_weather",
		Description: "Gets the current weather for a city, or for the user's location (by IP) when no city is given.",
		Category:    categoryWeather,
		Schema: tools.NewSchema(
			tools.Optional("city", tools.TypeString, "City name. Omit to use the current location.", nil),
		),
		Func: func(ctx context.Context, args tools.Args) (any, error) {
			return w.current(ctx, args.String("city"))
		},
	}
}

type weather struct {
	client *resty.Client
	cfg    WeatherConfig
	logger loggerv2.Logger
}

// Weather is the structured result of get_current_weather.
type Weather struct {
	LocationName  string  `json:"location_name"`
	Region        string  `json:"region"`
	Country       string  `json:"country"`
	LocalTime     string  `json:"localtime"`
	TempC         float64 `json:"temp_c"`
	TempF         float64 `json:"temp_f"`
	IsDay         bool    `json:"is_day"`
	ConditionText string  `json:"condition_text"`
	ConditionIcon string  `json:"condition_icon,omitempty"`
}

type weatherAPIResponse struct {
	Location struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		IsDay     int     `json:"is_day"`
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}

type weatherAPIError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// locate resolves the caller's city from their public IP, falling back to
// the weather service's own IP lookup.
func (w *weather) locate(ctx context.Context) string {
	var geo struct {
		Status string `json:"status"`
		City   string `json:"city"`
	}
	resp, err := w.client.R().SetContext(ctx).SetResult(&geo).Get(w.cfg.GeoURL)
	if err != nil || resp.IsError() || geo.Status != "success" || geo.City == "" {
		w.logger.Warn("Could not determine city from IP address, using auto:ip")
		return "auto:ip"
	}
	return geo.City
}

func (w *weather) current(ctx context.Context, city string) (*Weather, error) {
	if w.cfg.APIKey == "" {
		return nil, tools.Errorf("not_configured", MsgWeatherNotConfigured)
	}
	location := city
	if location == "" {
		location = w.locate(ctx)
	}
	w.logger.Info("Fetching weather", loggerv2.String("location", location))

	var data weatherAPIResponse
	var apiErr weatherAPIError
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"key": w.cfg.APIKey, "q": location, "aqi": "no"}).
		SetResult(&data).
		SetError(&apiErr).
		Get(w.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the weather service: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return nil, tools.Errorf("weather_api_error", "%s", msg)
	}

	out := &Weather{
		LocationName:  data.Location.Name,
		Region:        data.Location.Region,
		Country:       data.Location.Country,
		LocalTime:     data.Location.LocalTime,
		TempC:         data.Current.TempC,
		TempF:         data.Current.TempF,
		IsDay:         data.Current.IsDay == 1,
		ConditionText: data.Current.Condition.Text,
	}
	if icon := data.Current.Condition.Icon; icon != "" {
		out.ConditionIcon = "https:" + icon
	}
	return out, nil
}

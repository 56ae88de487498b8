// Package weather implements an MCP server for US weather alerts and
// forecasts from the National Weather Service.
package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/a2amesh/mcpserver"
)

// Default upstream endpoints.
const (
	DefaultNWSBaseURL      = "https://api.weather.gov"
	DefaultGeocoderBaseURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent       = "a2amesh-weather/1.0"
)

const (
	forecastPeriods = 5
	nwsService      = "National Weather Service"
	geocoderService = "Nominatim"
	nwsAccept       = "application/geo+json"
)

// Alert is an active weather alert.
type Alert struct {
	Event       string `json:"event"`
	AreaDesc    string `json:"areaDesc"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// Period is one forecast period.
type Period struct {
	Name             string `json:"name"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	DetailedForecast string `json:"detailedForecast"`
}

// Location is a geocoded place.
type Location struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	NWSBaseURL      string
	GeocoderBaseURL string
	// UserAgent identifies the application; both upstreams require one.
	UserAgent  string
	HTTPClient *http.Client
}

// Client calls the National Weather Service and the Nominatim geocoder.
type Client struct {
	opts ClientOptions
}

// NewClient creates a weather client.
func NewClient(optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		NWSBaseURL:      DefaultNWSBaseURL,
		GeocoderBaseURL: DefaultGeocoderBaseURL,
		UserAgent:       DefaultUserAgent,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.NWSBaseURL = strings.TrimRight(opts.NWSBaseURL, "/")
	opts.GeocoderBaseURL = strings.TrimRight(opts.GeocoderBaseURL, "/")

	return &Client{opts: opts}
}

// Alerts returns the active alerts for a two-letter US state code.
func (c *Client) Alerts(ctx context.Context, state string) ([]Alert, error) {
	var resp struct {
		Features []struct {
			Properties Alert `json:"properties"`
		} `json:"features"`
	}

	if err := c.nws(ctx, c.opts.NWSBaseURL+"/alerts/active/area/"+url.PathEscape(state), &resp); err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		alerts = append(alerts, f.Properties)
	}

	return alerts, nil
}

// Forecast returns the forecast periods for a point.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]Period, error) {
	var point struct {
		Properties struct {
			Forecast string `json:"forecast"`
		} `json:"properties"`
	}

	if err := c.nws(ctx, fmt.Sprintf("%s/points/%.4f,%.4f", c.opts.NWSBaseURL, lat, lon), &point); err != nil {
		return nil, err
	}

	if point.Properties.Forecast == "" {
		return nil, fmt.Errorf("no forecast grid for %.4f,%.4f", lat, lon)
	}

	var forecast struct {
		Properties struct {
			Periods []Period `json:"periods"`
		} `json:"properties"`
	}

	if err := c.nws(ctx, point.Properties.Forecast, &forecast); err != nil {
		return nil, err
	}

	return forecast.Properties.Periods, nil
}

// Geocode resolves a US city and state to coordinates. It returns nil when
// nothing matched.
func (c *Client) Geocode(ctx context.Context, city, state string) (*Location, error) {
	q := url.Values{
		"q":      {fmt.Sprintf("%s, %s, USA", city, state)},
		"format": {"json"},
		"limit":  {"1"},
	}

	var places []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}

	headers := map[string]string{"User-Agent": c.opts.UserAgent, "Accept": "application/json"}
	if err := mcpserver.GetJSON(ctx, c.opts.HTTPClient, geocoderService, c.opts.GeocoderBaseURL+"/search?"+q.Encode(), headers, &places); err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", places[0].Lat, err)
	}

	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", places[0].Lon, err)
	}

	return &Location{Latitude: lat, Longitude: lon, DisplayName: places[0].DisplayName}, nil
}

func (c *Client) nws(ctx context.Context, u string, v any) error {
	headers := map[string]string{"User-Agent": c.opts.UserAgent, "Accept": nwsAccept}
	return mcpserver.GetJSON(ctx, c.opts.HTTPClient, nwsService, u, headers, v)
}

package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/mcpserver"
)

// ServerName is the MCP implementation name.
const ServerName = "weather-mcp-server"

// Options configures the weather MCP server.
type Options struct {
	Version string
	Logger  logging.Logger
}

type handlers struct {
	client *Client
	logger logging.Logger
}

// NewServer creates the MCP server exposing the weather tools backed by client.
func NewServer(client *Client, optFns ...func(o *Options)) *server.MCPServer {
	opts := Options{Version: "1.0.0", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handlers{client: client, logger: opts.Logger}

	s := server.NewMCPServer(ServerName, opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("get_alerts",
		mcp.WithDescription("Get active weather alerts for a US state."),
		mcp.WithString("state", mcp.Required(), mcp.Description("Two-letter US state code (e.g. CA, NY)")),
	), h.alerts)

	s.AddTool(mcp.NewTool("get_forecast",
		mcp.WithDescription("Get the weather forecast for a location."),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Latitude of the location")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Longitude of the location")),
	), h.forecast)

	s.AddTool(mcp.NewTool("get_forecast_by_city",
		mcp.WithDescription("Get the weather forecast for a US city."),
		mcp.WithString("city", mcp.Required(), mcp.Description("The city name, e.g. New York")),
		mcp.WithString("state", mcp.Required(), mcp.Description("Two-letter US state code (e.g. NY)")),
	), h.forecastByCity)

	return s
}

func (h *handlers) alerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := req.RequireString("state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err = normalizeState(state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	alerts, err := h.client.Alerts(ctx, state)
	if err != nil {
		h.logger.Error("mcp.weather.error", "tool", "get_alerts", "state", state, "error", err)
		return mcpserver.ErrorResult("fetch alerts", err), nil
	}

	if len(alerts) == 0 {
		return mcp.NewToolResultText("No active alerts for " + state + "."), nil
	}

	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, FormatAlert(a))
	}

	return mcp.NewToolResultText(strings.Join(out, "\n---\n")), nil
}

func (h *handlers) forecast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return h.forecastAt(ctx, lat, lon), nil
}

func (h *handlers) forecastByCity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city, err := req.RequireString("city")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err := req.RequireString("state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if state, err = normalizeState(state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loc, err := h.client.Geocode(ctx, city, state)
	if err != nil {
		h.logger.Error("mcp.weather.error", "tool", "get_forecast_by_city", "city", city, "error", err)
		return mcpserver.ErrorResult("locate "+city, err), nil
	}

	if loc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Unable to find coordinates for %s, %s.", city, state)), nil
	}

	h.logger.Debug("mcp.weather.geocoded", "city", city, "state", state, "lat", loc.Latitude, "lon", loc.Longitude)

	return h.forecastAt(ctx, loc.Latitude, loc.Longitude), nil
}

func (h *handlers) forecastAt(ctx context.Context, lat, lon float64) *mcp.CallToolResult {
	periods, err := h.client.Forecast(ctx, lat, lon)
	if err != nil {
		h.logger.Error("mcp.weather.error", "tool", "get_forecast", "lat", lat, "lon", lon, "error", err)
		return mcpserver.ErrorResult("fetch the forecast", err)
	}

	if len(periods) == 0 {
		return mcp.NewToolResultText("No forecast available for this location.")
	}

	return mcp.NewToolResultText(FormatForecast(periods))
}

func normalizeState(state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 || state[0] < 'A' || state[0] > 'Z' || state[1] < 'A' || state[1] > 'Z' {
		return "", fmt.Errorf("state must be a two-letter US state code, got %q", state)
	}
	return state, nil
}

package weather

import (
	"fmt"
	"strings"
)

// FormatAlert renders an alert as readable text.
func FormatAlert(a Alert) string {
	instruction := a.Instruction
	if instruction == "" {
		instruction = "No specific instructions provided"
	}

	return fmt.Sprintf("Event: %s\nArea: %s\nSeverity: %s\nDescription: %s\nInstructions: %s",
		orUnknown(a.Event), orUnknown(a.AreaDesc), orUnknown(a.Severity),
		orDefault(a.Description, "No description available"), instruction)
}

// FormatForecast renders at most the first five periods.
func FormatForecast(periods []Period) string {
	if len(periods) > forecastPeriods {
		periods = periods[:forecastPeriods]
	}

	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, fmt.Sprintf("%s:\nTemperature: %d°%s\nWind: %s %s\nForecast: %s",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindSpeed, p.WindDirection, p.DetailedForecast))
	}

	return strings.Join(out, "\n---\n")
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Package services implements the third-party integrations the assistant can
// invoke through function calls.
//
// Every service degrades to canned demo output when its API key is absent, so
// a partially configured deployment still answers every function call with a
// user-facing string instead of failing.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultHTTPTimeout bounds outbound service API calls.
const DefaultHTTPTimeout = 10 * time.Second

// WeatherService provides weather lookups via OpenWeatherMap.
type WeatherService struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewWeatherService creates a weather service. An empty apiKey enables demo mode.
func NewWeatherService(apiKey string) *WeatherService {
	return &WeatherService{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org",
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// IsConfigured reports whether a real API key is available.
func (s *WeatherService) IsConfigured() bool { return s.apiKey != "" }

type geoResult struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type weatherResult struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

// CurrentWeather returns a formatted description of the current weather in location.
func (s *WeatherService) CurrentWeather(ctx context.Context, location string) string {
	if !s.IsConfigured() {
		return fmt.Sprintf("🌤️ Demo weather for %s: 22°C, partly cloudy, humidity 55%%. Set OPENWEATHER_API_KEY for live data.", location)
	}

	lat, lon, name, err := s.geocode(ctx, location)
	if err != nil {
		slog.Warn("WeatherService geocode failed", "error", err, "location", location)
		return fmt.Sprintf("Location '%s' not found. Please try a different location.", location)
	}

	var w weatherResult
	query := url.Values{
		"lat":   {fmt.Sprintf("%f", lat)},
		"lon":   {fmt.Sprintf("%f", lon)},
		"appid": {s.apiKey},
		"units": {"metric"},
	}
	if err := s.getJSON(ctx, s.baseURL+"/data/2.5/weather?"+query.Encode(), &w); err != nil {
		slog.Error("WeatherService lookup failed", "error", err, "location", location)
		return "⚠️ Weather service is unavailable right now. Try again in a bit."
	}

	desc := "unknown conditions"
	if len(w.Weather) > 0 {
		desc = w.Weather[0].Description
	}
	return fmt.Sprintf("🌤️ Weather in %s: %s, %.1f°C (feels like %.1f°C), humidity %d%%, wind %.1f m/s.",
		name, desc, w.Main.Temp, w.Main.FeelsLike, w.Main.Humidity, w.Wind.Speed)
}

type forecastResult struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Forecast returns a short multi-day forecast for location.
func (s *WeatherService) Forecast(ctx context.Context, location string) string {
	if !s.IsConfigured() {
		return fmt.Sprintf("🌤️ Demo forecast for %s: tomorrow 24°C sunny, day after 19°C light rain. Set OPENWEATHER_API_KEY for live data.", location)
	}

	lat, lon, name, err := s.geocode(ctx, location)
	if err != nil {
		return fmt.Sprintf("Location '%s' not found. Please try a different location.", location)
	}

	var f forecastResult
	query := url.Values{
		"lat":   {fmt.Sprintf("%f", lat)},
		"lon":   {fmt.Sprintf("%f", lon)},
		"appid": {s.apiKey},
		"units": {"metric"},
	}
	if err := s.getJSON(ctx, s.baseURL+"/data/2.5/forecast?"+query.Encode(), &f); err != nil {
		slog.Error("WeatherService forecast failed", "error", err, "location", location)
		return "⚠️ Weather service is unavailable right now. Try again in a bit."
	}

	out := fmt.Sprintf("🌤️ Forecast for %s:\n", name)
	// The 5-day feed is 3-hourly; sample every 8th entry for one line per day.
	for i := 0; i < len(f.List) && i < 40; i += 8 {
		entry := f.List[i]
		desc := ""
		if len(entry.Weather) > 0 {
			desc = entry.Weather[0].Description
		}
		out += fmt.Sprintf("• %s: %.1f°C, %s\n", entry.DtTxt, entry.Main.Temp, desc)
	}
	return out
}

func (s *WeatherService) geocode(ctx context.Context, location string) (lat, lon float64, name string, err error) {
	var results []geoResult
	query := url.Values{"q": {location}, "limit": {"1"}, "appid": {s.apiKey}}
	if err = s.getJSON(ctx, s.baseURL+"/geo/1.0/direct?"+query.Encode(), &results); err != nil {
		return 0, 0, "", err
	}
	if len(results) == 0 {
		return 0, 0, "", fmt.Errorf("no geocode results for %q", location)
	}
	return results[0].Lat, results[0].Lon, results[0].Name, nil
}

func (s *WeatherService) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

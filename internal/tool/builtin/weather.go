// Package builtin provides the tools shipped with the pagepal backend:
// weather lookup, a mock calendar, and a mock database query. Each tool
// decodes its parameter map into a typed request at its own boundary; the
// generic map stays at the transport edge.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/tool"
)

// Unit systems accepted by the weather tool.
const (
	UnitsCelsius    = "celsius"
	UnitsFahrenheit = "fahrenheit"
)

// WeatherService resolves a free-text location through a geocoding lookup and
// fetches current conditions from a forecast API (Open-Meteo compatible).
// Both endpoints are injectable so tests can point at local servers.
type WeatherService struct {
	geocodeURL  string
	forecastURL string
	client      *http.Client
	logger      log.Logger
}

// NewWeatherService creates a weather service. The HTTP client carries the
// only timeout in this path; the orchestration layer above does not add one.
func NewWeatherService(geocodeURL, forecastURL string, timeout time.Duration, logger log.Logger) *WeatherService {
	if logger == nil {
		logger = log.NewNop()
	}
	return &WeatherService{
		geocodeURL:  geocodeURL,
		forecastURL: forecastURL,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// WeatherReport is the structured result of a weather lookup.
type WeatherReport struct {
	Location      string  `json:"location"`
	Country       string  `json:"country,omitempty"`
	Temperature   float64 `json:"temperature"`
	Units         string  `json:"units"`
	Description   string  `json:"description"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection string  `json:"windDirection"`
	Timestamp     string  `json:"timestamp"`
}

// Definition returns the registrable tool definition for weather lookups.
func (s *WeatherService) Definition() tool.Definition {
	return tool.Definition{
		Name:        "weather",
		Description: "Get current weather conditions for a location",
		Parameters: map[string]tool.Parameter{
			"location": {
				Type:        tool.TypeString,
				Description: "City or place name to look up",
				Required:    true,
			},
			"units": {
				Type:        tool.TypeString,
				Description: "Unit system for temperature",
				Enum:        []string{UnitsCelsius, UnitsFahrenheit},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			location, _ := params["location"].(string)
			units, _ := params["units"].(string)
			if units == "" {
				units = UnitsCelsius
			}
			return s.Lookup(ctx, location, units)
		},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		WeatherCode   int     `json:"weathercode"`
		Time          string  `json:"time"`
	} `json:"current_weather"`
}

// Lookup geocodes the location (first result wins) and fetches current
// conditions in the requested unit system.
func (s *WeatherService) Lookup(ctx context.Context, location, units string) (*WeatherReport, error) {
	geo, err := s.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", geo.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", geo.Longitude))
	q.Set("current_weather", "true")
	if units == UnitsFahrenheit {
		q.Set("temperature_unit", "fahrenheit")
	}

	var fr forecastResponse
	if err := s.getJSON(ctx, s.forecastURL+"?"+q.Encode(), &fr); err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}

	cw := fr.CurrentWeather
	return &WeatherReport{
		Location:      geo.Name,
		Country:       geo.Country,
		Temperature:   cw.Temperature,
		Units:         units,
		Description:   describeWeatherCode(cw.WeatherCode),
		WindSpeed:     cw.WindSpeed,
		WindDirection: compassPoint(cw.WindDirection),
		Timestamp:     cw.Time,
	}, nil
}

type geocodeResult struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   string
}

func (s *WeatherService) geocode(ctx context.Context, location string) (*geocodeResult, error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")

	var gr geocodeResponse
	if err := s.getJSON(ctx, s.geocodeURL+"?"+q.Encode(), &gr); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", location, err)
	}
	if len(gr.Results) == 0 {
		return nil, fmt.Errorf("Location %q not found", location)
	}

	first := gr.Results[0]
	return &geocodeResult{
		Name:      first.Name,
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
		Country:   first.Country,
	}, nil
}

func (s *WeatherService) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// weatherDescriptions maps WMO weather codes to human-readable conditions.
var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func describeWeatherCode(code int) string {
	if desc, ok := weatherDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown conditions (code %d)", code)
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// compassPoint rounds a wind direction in degrees to the nearest of the 16
// compass points.
func compassPoint(degrees float64) string {
	idx := int(math.Round(math.Mod(degrees, 360)/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

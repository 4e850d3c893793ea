package backend

import "time"

// WeatherReport is the provider's current conditions near a point.
type WeatherReport struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DateTime    string  `json:"datetime"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"` // Kelvin
	Humidity    float64 `json:"humidity"`    // percent
	WindSpeed   float64 `json:"wind_speed"`  // m/s
	Visibility  float64 `json:"visibility"`  // metres
}

// Celsius returns the temperature converted from Kelvin.
func (w WeatherReport) Celsius() float64 {
	return w.Temperature - 273.15
}

// NewsArticle is one maritime news item.
type NewsArticle struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	PublishedAt    time.Time `json:"published_at"`
	Category       string    `json:"category"`
	RelevanceScore float64   `json:"relevance_score"`
}

// VesselReport is one AIS position report from the upstream feed.
type VesselReport struct {
	MMSI      string    `json:"mmsi"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedKn   float64   `json:"speed_knots"`
	CourseDeg float64   `json:"course"`
	Timestamp time.Time `json:"timestamp"`
}

// Risk level bands.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskLevel is a geopolitical risk score in [0, 1] and its band.
type RiskLevel struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Score     float64 `json:"score"`
	Level     string  `json:"level"`
}

// RiskBand maps a score to its band: >= 0.7 high, >= 0.4 medium, else low.
func RiskBand(score float64) string {
	switch {
	case score >= 0.7:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

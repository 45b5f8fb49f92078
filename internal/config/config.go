// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFeedURL is the USGS summary feed of M4.5+ events for the past week.
const DefaultFeedURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_week.geojson"

// Config represents the root configuration file structure.
type Config struct {
	Attribution string   `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	CorsOrigins []string `yaml:"cors_origins,omitempty" json:"-"`
	Feed        Feed     `yaml:"feed" json:"-"`
	Map         Map      `yaml:"map" json:"map"`
}

// Feed describes where the earthquake feature collection comes from.
type Feed struct {
	URL string `yaml:"url,omitempty"`

	// local snapshot written by the loader, takes priority over URL
	File string `yaml:"file,omitempty"`

	// zero means the request may wait indefinitely
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Map holds the settings handed to the browser map renderer.
type Map struct {
	AccessToken string     `yaml:"access_token,omitempty" json:"access_token,omitempty"`
	Style       string     `yaml:"style,omitempty" json:"style"`
	BeforeLayer string     `yaml:"before_layer,omitempty" json:"before_layer,omitempty"`
	Center      [2]float64 `yaml:"center,flow" json:"center"` // [Lon, Lat]
	Zoom        float64    `yaml:"zoom,omitempty" json:"zoom"`
	MinZoom     float64    `yaml:"min_zoom,omitempty" json:"min_zoom"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Attribution: `<a href="https://earthquake.usgs.gov/earthquakes/" target="_blank">USGS</a>`,
		Feed: Feed{
			URL: DefaultFeedURL,
		},
		Map: Map{
			Style:       "mapbox://styles/mapbox/dark-v10",
			BeforeLayer: "waterway-label",
			Center:      [2]float64{138, 38},
			Zoom:        5,
			MinZoom:     2,
		},
	}
}

// Load reads and parses the YAML configuration file from the specified path
// on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Feed.URL == "" && c.Feed.File == "" {
		errs = append(errs, "feed.url or feed.file is required")
	}
	if c.Feed.Timeout < 0 {
		errs = append(errs, "feed.timeout must not be negative")
	}

	lon, lat := c.Map.Center[0], c.Map.Center[1]
	if lon < -180 || lon > 180 {
		errs = append(errs, fmt.Sprintf("map.center longitude must be -180..180, got %g", lon))
	}
	if lat < -90 || lat > 90 {
		errs = append(errs, fmt.Sprintf("map.center latitude must be -90..90, got %g", lat))
	}
	if c.Map.MinZoom < 0 {
		errs = append(errs, "map.min_zoom must not be negative")
	}
	if c.Map.Zoom < c.Map.MinZoom {
		errs = append(errs, fmt.Sprintf("map.zoom (%g) is below map.min_zoom (%g)", c.Map.Zoom, c.Map.MinZoom))
	}
	if c.Map.Style == "" {
		errs = append(errs, "map.style is required")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Package config holds the run configuration shared by the diffraxia commands.
// Values are resolved as flags > DIFFRAXIA_* environment > TOML file > defaults.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	LogLevel        string
	ProgressAddr    string
	ContinueOnError bool

	// eiger2tiff / inspect
	Group string
	// eiger2tiff / stream2tiff
	OutputDir string
	// Limit is nil unless --nframes was given.
	Limit *int

	// integrate
	Instrument   string
	TiffFolder   string
	Pattern      string
	TTHMin       float64
	TTHMax       float64
	NBins        int
	OutputPrefix string
	Plot         bool
	Watch        bool
	Settle       time.Duration

	// stream2tiff
	Endpoint       string
	RawLogDir      string
	Debug          bool
	DebugAcqRate   float64
	DebugRows      int
	DebugCols      int
	IngestLogEvery int
	DetectorAPI    string
	DetectorPoll   time.Duration
	EnableStream   bool
}

func DefaultConfig() AppConfig {
	return AppConfig{
		LogLevel:       "info",
		Group:          "data",
		OutputDir:      "tiff_out",
		Pattern:        "*.tiff,*.tif",
		TTHMin:         0,
		TTHMax:         20,
		NBins:          2000,
		Settle:         500 * time.Millisecond,
		Endpoint:       "tcp://localhost:31001",
		DebugAcqRate:   10,
		DebugRows:      64,
		DebugCols:      64,
		IngestLogEvery: 100,
		DetectorPoll:   5 * time.Second,
	}
}

// ValidateIntegrate checks the options integrate cannot run without.
func (c AppConfig) ValidateIntegrate() error {
	var missing []string
	if c.Instrument == "" {
		missing = append(missing, "--instrument")
	}
	if c.TiffFolder == "" {
		missing = append(missing, "--tiff-folder")
	}
	if c.OutputPrefix == "" {
		missing = append(missing, "--output-prefix")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required option(s): %s", strings.Join(missing, ", "))
	}
	if c.NBins < 1 {
		return fmt.Errorf("nbins must be positive, got %d", c.NBins)
	}
	if !(c.TTHMin < c.TTHMax) {
		return fmt.Errorf("tth-min (%g) must be below tth-max (%g)", c.TTHMin, c.TTHMax)
	}
	return nil
}

// configSetter applies values only for options whose flag was not set on the
// command line.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setOptionalInt sets a frame count. Zero is a valid count, nil means unset.
func (s *configSetter) setOptionalInt(flag string, value *int, dst **int) error {
	if value == nil || s.changed[flag] {
		return nil
	}
	if *value < 0 {
		return fmt.Errorf("%s must not be negative, got %d", flag, *value)
	}
	v := *value
	*dst = &v
	return nil
}

// setFloat sets a float64 value from a pointer. Zero and negative values are
// kept, 2θ bounds may be either.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setOptionalIntFromString(flag, value string, dst **int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	return s.setOptionalInt(flag, &i, dst)
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("parse %s: value must be finite", flag)
	}
	*dst = f
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

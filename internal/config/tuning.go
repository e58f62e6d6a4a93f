package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rehab.report/internal/exercise"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds evaluator tuning and per-exercise prescription
// overrides. Every field is optional; the Get* methods supply defaults.
type TuningConfig struct {
	VisibilityThreshold *float64 `json:"visibility_threshold,omitempty"`
	HysteresisDeg       *float64 `json:"hysteresis_deg,omitempty"`
	SessionHistoryLimit *int     `json:"session_history_limit,omitempty"`
	IdleTimeout         *string  `json:"idle_timeout,omitempty"` // duration string like "30m"

	// Exercises is keyed by exercise identifier, e.g. "knee_flexion".
	Exercises map[string]*ExerciseTuning `json:"exercises,omitempty"`
}

// ExerciseTuning overrides an exercise's default configuration.
type ExerciseTuning struct {
	TargetAngle  *float64 `json:"target_angle,omitempty"`
	Tolerance    *float64 `json:"tolerance,omitempty"`
	MinAngle     *float64 `json:"min_angle,omitempty"`
	MaxAngle     *float64 `json:"max_angle,omitempty"`
	HoldDuration *string  `json:"hold_duration,omitempty"` // duration string like "2s"
	Repetitions  *int     `json:"repetitions,omitempty"`
	Side         *string  `json:"side,omitempty"`
	Use3D        *bool    `json:"use_3d,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file fall back to defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.VisibilityThreshold != nil {
		if v := *c.VisibilityThreshold; v <= 0 || v > 1 {
			return fmt.Errorf("visibility_threshold must be in (0, 1], got %f", v)
		}
	}
	if c.HysteresisDeg != nil && *c.HysteresisDeg < 0 {
		return fmt.Errorf("hysteresis_deg must be non-negative, got %f", *c.HysteresisDeg)
	}
	if c.SessionHistoryLimit != nil && *c.SessionHistoryLimit < 0 {
		return fmt.Errorf("session_history_limit must be non-negative, got %d", *c.SessionHistoryLimit)
	}
	if c.IdleTimeout != nil && *c.IdleTimeout != "" {
		if _, err := time.ParseDuration(*c.IdleTimeout); err != nil {
			return fmt.Errorf("invalid idle_timeout '%s': %w", *c.IdleTimeout, err)
		}
	}
	for name := range c.Exercises {
		def, err := exercise.Lookup(name)
		if err != nil {
			return fmt.Errorf("exercises: %w", err)
		}
		if _, err := c.ExerciseConfig(def.Kind(), def.DefaultConfig()); err != nil {
			return fmt.Errorf("exercises.%s: %w", name, err)
		}
	}
	return nil
}

// ExerciseConfig applies the overrides for kind, and the global hysteresis,
// on top of base and validates the result.
func (c *TuningConfig) ExerciseConfig(kind exercise.Kind, base exercise.Config) (exercise.Config, error) {
	cfg := base
	cfg.Hysteresis = c.GetHysteresisDeg()

	o := c.Exercises[string(kind)]
	if o != nil {
		if o.TargetAngle != nil {
			cfg.TargetAngle = *o.TargetAngle
		}
		if o.Tolerance != nil {
			cfg.Tolerance = *o.Tolerance
		}
		if o.MinAngle != nil {
			cfg.MinAngle = exercise.Float64(*o.MinAngle)
		}
		if o.MaxAngle != nil {
			cfg.MaxAngle = exercise.Float64(*o.MaxAngle)
		}
		if o.HoldDuration != nil && *o.HoldDuration != "" {
			d, err := time.ParseDuration(*o.HoldDuration)
			if err != nil {
				return exercise.Config{}, fmt.Errorf("%w: invalid hold_duration '%s': %v", exercise.ErrInvalidConfiguration, *o.HoldDuration, err)
			}
			cfg.HoldDuration = d
		}
		if o.Repetitions != nil {
			cfg.Repetitions = *o.Repetitions
		}
		if o.Side != nil {
			cfg.Side = exercise.Side(*o.Side)
		}
		if o.Use3D != nil {
			cfg.Use3D = *o.Use3D
		}
	}
	if err := cfg.Validate(); err != nil {
		return exercise.Config{}, err
	}
	return cfg, nil
}

// GetVisibilityThreshold returns the visibility_threshold value or the default.
func (c *TuningConfig) GetVisibilityThreshold() float64 {
	if c.VisibilityThreshold == nil {
		return 0.5
	}
	return *c.VisibilityThreshold
}

// GetHysteresisDeg returns the hysteresis_deg value or the default.
func (c *TuningConfig) GetHysteresisDeg() float64 {
	if c.HysteresisDeg == nil {
		return 0
	}
	return *c.HysteresisDeg
}

// GetSessionHistoryLimit returns the session_history_limit value or the default.
func (c *TuningConfig) GetSessionHistoryLimit() int {
	if c.SessionHistoryLimit == nil {
		return 0
	}
	return *c.SessionHistoryLimit
}

// GetIdleTimeout parses and returns the IdleTimeout as a time.Duration.
// Zero disables idle session expiry.
func (c *TuningConfig) GetIdleTimeout() time.Duration {
	if c.IdleTimeout == nil || *c.IdleTimeout == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(*c.IdleTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

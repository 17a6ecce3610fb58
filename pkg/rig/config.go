// Package rig describes a physical oscillator rig: which controller drives
// the axis, how to reach it and the motion settings it runs with.
package rig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/oscillator/pkg/motion"
	"github.com/gwillem/oscillator/pkg/tic"
)

const DefaultConfigFile = "oscillator.json"

// Transport selects how the motion controller is reached.
type Transport string

const (
	TransportUSB     Transport = "usb"
	TransportI2C     Transport = "i2c"
	TransportFeetech Transport = "feetech"
)

// Config holds the rig configuration
type Config struct {
	Transport Transport `json:"transport" yaml:"transport"`
	// Port is the serial port of the Tic command port or the servo bus.
	// Empty means the first Tic found on USB.
	Port    string `json:"port,omitempty" yaml:"port,omitempty"`
	Product string `json:"product,omitempty" yaml:"product,omitempty"`
	I2CBus  string `json:"i2c_bus,omitempty" yaml:"i2c_bus,omitempty"`
	I2CAddr uint16 `json:"i2c_addr,omitempty" yaml:"i2c_addr,omitempty"`
	ServoID int    `json:"servo_id,omitempty" yaml:"servo_id,omitempty"`

	Motion Motion `json:"motion" yaml:"motion"`
}

// Motion is the file form of motion.Settings.
type Motion struct {
	X1     int    `json:"x1" yaml:"x1"`
	X2     int    `json:"x2" yaml:"x2"`
	Cycles int    `json:"cycles" yaml:"cycles"` // 0 runs until stopped
	Policy string `json:"policy" yaml:"policy"`

	Speed         int `json:"speed" yaml:"speed"`
	StartingSpeed int `json:"starting_speed" yaml:"starting_speed"`
	MinSpeed      int `json:"min_speed" yaml:"min_speed"`
	JogSpeed      int `json:"jog_speed" yaml:"jog_speed"`
	RotationSpeed int `json:"rotation_speed" yaml:"rotation_speed"`

	MaxAccel   int     `json:"max_accel" yaml:"max_accel"`
	MaxDecel   int     `json:"max_decel" yaml:"max_decel"`
	MinAccel   int     `json:"min_accel" yaml:"min_accel"`
	LimitScale float64 `json:"limit_scale" yaml:"limit_scale"`

	SpeedStepPercent int `json:"speed_step_percent" yaml:"speed_step_percent"`
	StepsPerRev      int `json:"steps_per_rev" yaml:"steps_per_rev"`
	Tolerance        int `json:"tolerance" yaml:"tolerance"`

	MoveTimeout     Duration `json:"move_timeout" yaml:"move_timeout"`
	Dwell           Duration `json:"dwell" yaml:"dwell"`
	KeepalivePeriod Duration `json:"keepalive_period" yaml:"keepalive_period"`
	Slice           Duration `json:"slice" yaml:"slice"`
	AdjustInterval  Duration `json:"adjust_interval" yaml:"adjust_interval"`
	SampleInterval  Duration `json:"sample_interval" yaml:"sample_interval"`
}

// DefaultConfig returns a USB rig with the default motion settings.
func DefaultConfig() Config {
	return Config{
		Transport: TransportUSB,
		ServoID:   1,
		Motion:    FromSettings(motion.DefaultSettings()),
	}
}

// FromSettings converts settings to their file form.
func FromSettings(s motion.Settings) Motion {
	return Motion{
		X1:               s.X1,
		X2:               s.X2,
		Cycles:           int(s.Cycles),
		Policy:           string(s.Policy),
		Speed:            s.Speed,
		StartingSpeed:    s.StartingSpeed,
		MinSpeed:         s.MinSpeed,
		JogSpeed:         s.JogSpeed,
		RotationSpeed:    s.RotationSpeed,
		MaxAccel:         s.MaxAccel,
		MaxDecel:         s.MaxDecel,
		MinAccel:         s.MinAccel,
		LimitScale:       s.LimitScale,
		SpeedStepPercent: s.SpeedStepPercent,
		StepsPerRev:      s.StepsPerRev,
		Tolerance:        s.Tolerance,
		MoveTimeout:      Duration(s.MoveTimeout),
		Dwell:            Duration(s.Dwell),
		KeepalivePeriod:  Duration(s.KeepalivePeriod),
		Slice:            Duration(s.Slice),
		AdjustInterval:   Duration(s.AdjustInterval),
		SampleInterval:   Duration(s.SampleInterval),
	}
}

// Settings converts the file form back to motion settings.
func (m Motion) Settings() motion.Settings {
	return motion.Settings{
		X1:               m.X1,
		X2:               m.X2,
		Cycles:           motion.Goal(m.Cycles),
		Policy:           motion.PolicyKind(m.Policy),
		Speed:            m.Speed,
		StartingSpeed:    m.StartingSpeed,
		MinSpeed:         m.MinSpeed,
		JogSpeed:         m.JogSpeed,
		RotationSpeed:    m.RotationSpeed,
		MaxAccel:         m.MaxAccel,
		MaxDecel:         m.MaxDecel,
		MinAccel:         m.MinAccel,
		LimitScale:       m.LimitScale,
		SpeedStepPercent: m.SpeedStepPercent,
		StepsPerRev:      m.StepsPerRev,
		Tolerance:        m.Tolerance,
		MoveTimeout:      time.Duration(m.MoveTimeout),
		Dwell:            time.Duration(m.Dwell),
		KeepalivePeriod:  time.Duration(m.KeepalivePeriod),
		Slice:            time.Duration(m.Slice),
		AdjustInterval:   time.Duration(m.AdjustInterval),
		SampleInterval:   time.Duration(m.SampleInterval),
	}
}

// Settings returns the motion settings of the rig.
func (c *Config) Settings() motion.Settings {
	return c.Motion.Settings()
}

// Limits returns the rated limits of the configured controller.
func (c *Config) Limits() motion.DeviceLimits {
	return motion.TicLimits
}

// Validate checks the transport fields and the motion settings.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportUSB, TransportFeetech:
	case TransportI2C:
		if c.Product == "" {
			return &motion.ConfigError{Field: "product", Reason: "required for the i2c transport"}
		}
	default:
		return &motion.ConfigError{Field: "transport", Reason: fmt.Sprintf("unknown transport %q", c.Transport)}
	}
	if c.Product != "" {
		if _, ok := tic.ParseProduct(c.Product); !ok {
			return &motion.ConfigError{Field: "product", Reason: fmt.Sprintf("unknown Tic model %q", c.Product)}
		}
	}
	if c.Transport == TransportFeetech && c.Port == "" {
		return &motion.ConfigError{Field: "port", Reason: "required for the feetech transport"}
	}
	return c.Settings().Validate(c.Limits())
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a JSON or YAML file. Fields the
// file leaves out keep their default values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file, as YAML when the name ends
// in .yaml or .yml.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Duration is a time.Duration written as a string such as "300ms".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"300ms\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

package rig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gwillem/oscillator/pkg/motion"
)

func TestConfig_SaveLoad(t *testing.T) {
	for _, name := range []string{"rig.json", "rig.yaml", "rig.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := DefaultConfig()
			cfg.Port = "/dev/ttyACM0"
			cfg.Product = "T825"
			cfg.Motion.X1 = -500
			cfg.Motion.Cycles = 0
			cfg.Motion.Dwell = Duration(750 * time.Millisecond)

			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}
			got, err := LoadConfigFrom(path)
			if err != nil {
				t.Fatalf("LoadConfigFrom: %v", err)
			}
			if *got != cfg {
				t.Errorf("loaded %+v, want %+v", *got, cfg)
			}
		})
	}
}

func TestConfig_DurationsAreStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.json")
	cfg := DefaultConfig()
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"dwell": "300ms"`) {
		t.Errorf("dwell not written as a duration string:\n%s", data)
	}
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"json", "rig.json", `{"transport": "usb", "motion": {"x1": -200, "x2": 400, "dwell": "1s"}}`},
		{"yaml", "rig.yaml", "transport: usb\nmotion:\n  x1: -200\n  x2: 400\n  dwell: 1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadConfigFrom(path)
			if err != nil {
				t.Fatalf("LoadConfigFrom: %v", err)
			}
			s := cfg.Settings()
			if s.X1 != -200 || s.X2 != 400 || s.Dwell != time.Second {
				t.Errorf("file values not applied: %+v", s)
			}
			def := motion.DefaultSettings()
			if s.Speed != def.Speed || s.KeepalivePeriod != def.KeepalivePeriod || s.Policy != def.Policy {
				t.Errorf("missing fields lost their defaults: %+v", s)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestLoadConfigFrom_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.json")
	if err := os.WriteFile(path, []byte(`{"motion": {"dwell": 300}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("expected an error for a numeric duration")
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestConfig_SettingsRoundTrip(t *testing.T) {
	s := motion.DefaultSettings()
	s.Cycles = motion.Unbounded
	s.Policy = motion.PolicyAnchor
	s.RotationSpeed = -s.RotationSpeed
	if got := FromSettings(s).Settings(); got != s {
		t.Errorf("FromSettings(s).Settings() = %+v, want %+v", got, s)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"default", func(*Config) {}, ""},
		{"unknown transport", func(c *Config) { c.Transport = "can" }, "transport"},
		{"i2c without product", func(c *Config) { c.Transport = TransportI2C }, "product"},
		{"i2c with product", func(c *Config) { c.Transport = TransportI2C; c.Product = "36v4" }, ""},
		{"unknown product", func(c *Config) { c.Product = "T9000" }, "product"},
		{"feetech without port", func(c *Config) { c.Transport = TransportFeetech }, "port"},
		{"equal endpoints", func(c *Config) { c.Motion.X2 = c.Motion.X1 }, "x1/x2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ce *motion.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("Validate() = %v, want ConfigError on %s", err, tt.field)
			}
		})
	}
}

func TestConfig_OpenUnknownTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport = "can"
	dev, err := cfg.Open()
	if err == nil || dev != nil {
		t.Errorf("Open() = %v, %v, want nil device and an error", dev, err)
	}
}

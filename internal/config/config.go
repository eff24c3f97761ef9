// Package config loads and validates the stallpos configuration file.
// Files are YAML; the shape and value constraints live in a CUE schema so
// invalid configs fail at load time with a field-level message.
package config

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// schema constrains the decoded config before it is handed to the rest of
// the process. Kept in lockstep with the Config struct below.
const schema = `
{
	device_id:      string & !=""
	api_base_url:   string & !=""
	db_path:        string & !=""
	printer:        "console" | "escpos"
	printer_device: string & !=""
	backoff: {
		base_ms: int & >0
		max_ms:  int & >=base_ms
	}
}
`

// Backoff holds the sync retry delay bounds in milliseconds.
type Backoff struct {
	BaseMS int `yaml:"base_ms" json:"base_ms"`
	MaxMS  int `yaml:"max_ms" json:"max_ms"`
}

// Config is the full process configuration.
type Config struct {
	DeviceID      string  `yaml:"device_id" json:"device_id"`
	APIBaseURL    string  `yaml:"api_base_url" json:"api_base_url"`
	DBPath        string  `yaml:"db_path" json:"db_path"`
	Printer       string  `yaml:"printer" json:"printer"`
	PrinterDevice string  `yaml:"printer_device" json:"printer_device"`
	Backoff       Backoff `yaml:"backoff" json:"backoff"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DeviceID:      "cashier-1",
		APIBaseURL:    "http://localhost:3000/api",
		DBPath:        "stallpos.db",
		Printer:       "console",
		PrinterDevice: "/dev/usb/lp0",
		Backoff:       Backoff{BaseMS: 1000, MaxMS: 30000},
	}
}

// BaseDelay returns the backoff base as a duration.
func (b Backoff) BaseDelay() time.Duration { return time.Duration(b.BaseMS) * time.Millisecond }

// MaxDelay returns the backoff cap as a duration.
func (b Backoff) MaxDelay() time.Duration { return time.Duration(b.MaxMS) * time.Millisecond }

// Load reads a YAML config file, fills unset fields from Default, and
// validates the result against the schema.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate unifies the config with the CUE schema and reports the first
// constraint violation.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	cfgVal := ctx.Encode(cfg)
	if err := cfgVal.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schemaVal.Unify(cfgVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

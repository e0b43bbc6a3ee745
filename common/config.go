// common/config.go
package common

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Plain TCP listener for the HTTP shell.
	HTTPAddr string `yaml:"httpAddr"`
	// UDP address for the same routes over HTTP/3. Empty disables it.
	HTTP3Addr string `yaml:"http3Addr"`
	// UDP address of the QUIC status feed. Empty disables it.
	FeedAddr string `yaml:"feedAddr"`

	LogLevel string `yaml:"logLevel"`

	// Elevators registered at startup.
	Elevators []ElevatorID `yaml:"elevators"`

	BusCapacity    int           `yaml:"busCapacity"`
	TickInterval   time.Duration `yaml:"tickInterval"`
	ReportInterval time.Duration `yaml:"reportInterval"`

	StartFloor        Floor `yaml:"startFloor"`
	ReturnHomeOnStart bool  `yaml:"returnHomeOnStart"`
}

// DefaultConfig returns the built-in settings: two lifts, a 32 slot bus and
// a one second tick/report cycle.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          "127.0.0.1:3000",
		LogLevel:          "info",
		Elevators:         []ElevatorID{0, 1},
		BusCapacity:       32,
		TickInterval:      500 * time.Millisecond,
		ReportInterval:    500 * time.Millisecond,
		StartFloor:        10,
		ReturnHomeOnStart: true,
	}
}

// LoadConfig layers DefaultConfig, the YAML file at path, the dotenv file at
// envPath and finally the process environment. Missing files are skipped.
func LoadConfig(path, envPath string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return Config{}, err
		}
	}

	env := map[string]string{}
	if envPath != "" {
		fileEnv, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, envPrefix) {
			env[k] = v
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

const envPrefix = "LIFT_"

func (c *Config) applyEnv(env map[string]string) error {
	for key, val := range env {
		val = strings.TrimSpace(val)
		var err error
		switch key {
		case "LIFT_HTTP_ADDR":
			c.HTTPAddr = val
		case "LIFT_HTTP3_ADDR":
			c.HTTP3Addr = val
		case "LIFT_FEED_ADDR":
			c.FeedAddr = val
		case "LIFT_LOG_LEVEL":
			c.LogLevel = val
		case "LIFT_ELEVATORS":
			c.Elevators, err = parseElevatorList(val)
		case "LIFT_BUS_CAPACITY":
			c.BusCapacity, err = strconv.Atoi(val)
		case "LIFT_TICK_INTERVAL":
			c.TickInterval, err = time.ParseDuration(val)
		case "LIFT_REPORT_INTERVAL":
			c.ReportInterval, err = time.ParseDuration(val)
		case "LIFT_START_FLOOR":
			var n int
			n, err = strconv.Atoi(val)
			c.StartFloor = Floor(n)
		case "LIFT_RETURN_HOME_ON_START":
			c.ReturnHomeOnStart, err = strconv.ParseBool(val)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}
	return nil
}

func parseElevatorList(csv string) ([]ElevatorID, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]ElevatorID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := ParseElevatorID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c Config) Validate() error {
	if c.BusCapacity <= 0 {
		return fmt.Errorf("busCapacity must be positive, got %d", c.BusCapacity)
	}
	if c.TickInterval <= 0 || c.ReportInterval <= 0 {
		return fmt.Errorf("tick and report intervals must be positive")
	}
	seen := make(map[ElevatorID]bool, len(c.Elevators))
	for _, id := range c.Elevators {
		if seen[id] {
			return fmt.Errorf("elevator %d listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

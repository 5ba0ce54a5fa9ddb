package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Source  Source  `yaml:"source"`
	Reports Reports `yaml:"reports"`
	Drought Drought `yaml:"drought"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Source describes the NOAA STAR admin time series endpoint.
type Source struct {
	BaseURL        string `yaml:"base_url"`
	Country        string `yaml:"country"`
	YearFrom       int    `yaml:"year_from"`
	YearTo         int    `yaml:"year_to"`
	Type           string `yaml:"type"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Concurrency    int    `yaml:"concurrency"`
}

// Reports selects the years listed by the run command.
type Reports struct {
	Year  string   `yaml:"year"`
	Years []string `yaml:"years"`
}

// Drought configures the critical drought rule.
type Drought struct {
	MaxVHI         float64 `yaml:"max_vhi"`
	MissingVHI     float64 `yaml:"missing_vhi"`
	MinRegionShare float64 `yaml:"min_region_share"`
	// RegionCount overrides the registry size as the share's base; 0 uses
	// the registry.
	RegionCount int `yaml:"region_count"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	Format  string `yaml:"format"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for vhireport.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "vhireport")
}

// DataDir returns the XDG data directory for vhireport.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "vhireport")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/vhireport/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'vhireport init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			BaseURL:        "https://www.star.nesdis.noaa.gov/smcd/emb/vci/VH/get_TS_admin.php",
			Country:        "UKR",
			YearFrom:       1981,
			YearTo:         2024,
			Type:           "Mean",
			TimeoutSeconds: 30,
			Concurrency:    1,
		},
		Reports: Reports{
			Year:  "2000",
			Years: []string{"2000", "2001", "2002"},
		},
		Drought: Drought{
			MaxVHI:         15,
			MissingVHI:     -1,
			MinRegionShare: 0.2,
		},
		Output:  Output{Format: "text"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.YearFrom > c.Source.YearTo {
		return fmt.Errorf("source.year_from (%d) is after source.year_to (%d)", c.Source.YearFrom, c.Source.YearTo)
	}
	if c.Source.Concurrency < 1 {
		return fmt.Errorf("source.concurrency must be at least 1, got %d", c.Source.Concurrency)
	}
	if c.Drought.MaxVHI <= c.Drought.MissingVHI {
		return fmt.Errorf("drought.max_vhi (%g) must be above drought.missing_vhi (%g)", c.Drought.MaxVHI, c.Drought.MissingVHI)
	}
	if c.Drought.MinRegionShare < 0 || c.Drought.MinRegionShare > 1 {
		return fmt.Errorf("drought.min_region_share must be within [0, 1], got %g", c.Drought.MinRegionShare)
	}
	if c.Drought.RegionCount < 0 {
		return fmt.Errorf("drought.region_count must not be negative")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// FilesDir returns the directory holding the raw per-region files.
func (c *Config) FilesDir() string {
	return filepath.Join(c.GetDataDir(), "vhi_data")
}

// DBPath returns the path of the fetch ledger.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "vhireport.db")
}

// Timeout returns the per-request source timeout.
func (s Source) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Debug reports whether the configured log level is DEBUG.
func (l Logging) Debug() bool {
	return strings.EqualFold(l.Level, "debug")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

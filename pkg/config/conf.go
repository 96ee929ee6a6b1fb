package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/georisk/pkg/data"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	defaultServerAddress = ":8080"
	defaultModelVersion  = "1.0"
	defaultWorkers       = 4
)

// Config represents app config object.
type Config struct {
	Database string         `json:"database" yaml:"database"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Model    ModelConfig    `json:"model" yaml:"model"`
	Sources  SourcesConfig  `json:"sources" yaml:"sources"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`
}

type ServerConfig struct {
	Address string `json:"address" yaml:"address"`
}

type ModelConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Version string `json:"version" yaml:"version"`
}

// SourceConfig holds the throttle and resilience settings for one
// external data source.
type SourceConfig struct {
	Name           string `json:"name" yaml:"name"`
	DailyBudget    int    `json:"daily_budget" yaml:"daily_budget"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`
	BackoffSeconds int    `json:"backoff_seconds" yaml:"backoff_seconds"`
}

type SourcesConfig struct {
	Events     []SourceConfig `json:"events" yaml:"events"`
	Indicators []SourceConfig `json:"indicators" yaml:"indicators"`
}

type PipelineConfig struct {
	Workers         int      `json:"workers" yaml:"workers"`
	EventWindowDays int      `json:"event_window_days" yaml:"event_window_days"`
	IndicatorYears  int      `json:"indicator_years" yaml:"indicator_years"`
	Countries       []string `json:"countries,omitempty" yaml:"countries,omitempty"`
}

// ScheduleConfig holds standard cron expressions per pipeline task.
type ScheduleConfig struct {
	TickSeconds int    `json:"tick_seconds" yaml:"tick_seconds"`
	Events      string `json:"events" yaml:"events"`
	Indicators  string `json:"indicators" yaml:"indicators"`
	Classify    string `json:"classify" yaml:"classify"`
	Features    string `json:"features" yaml:"features"`
	Score       string `json:"score" yaml:"score"`
}

func getDefaultConfig(dirPath string) *Config {
	return &Config{
		Database: filepath.Join(dirPath, data.DataFileName),
		Server: ServerConfig{
			Address: defaultServerAddress,
		},
		Model: ModelConfig{
			Dir:     filepath.Join(dirPath, "models"),
			Version: defaultModelVersion,
		},
		Sources: SourcesConfig{
			Events: []SourceConfig{
				{Name: "gdelt", DailyBudget: 1000, TimeoutSeconds: 30, MaxRetries: 3, BackoffSeconds: 2},
			},
			Indicators: []SourceConfig{
				{Name: "worldbank", DailyBudget: 10000, TimeoutSeconds: 30, MaxRetries: 3, BackoffSeconds: 2},
			},
		},
		Pipeline: PipelineConfig{
			Workers:         defaultWorkers,
			EventWindowDays: 1,
			IndicatorYears:  10,
		},
		Schedule: ScheduleConfig{
			TickSeconds: 60,
			Events:      "0 */6 * * *",
			Indicators:  "@weekly",
			Classify:    "@hourly",
			Features:    "@daily",
			Score:       "@daily",
		},
	}
}

// Validate checks the parts of the config that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database path required")
	}
	if c.Model.Version == "" {
		return errors.New("model version required")
	}
	for _, s := range append(append([]SourceConfig{}, c.Sources.Events...), c.Sources.Indicators...) {
		if s.Name == "" {
			return errors.New("source name required")
		}
		if s.DailyBudget < 1 {
			return errors.Errorf("source %s: daily_budget must be positive", s.Name)
		}
		if s.MaxRetries < 0 {
			return errors.Errorf("source %s: max_retries cannot be negative", s.Name)
		}
	}
	if c.Pipeline.Workers < 1 {
		return errors.New("pipeline workers must be positive")
	}
	return nil
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", configFileName)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(dirPath, dirMode)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, getDefaultConfig(dirPath)); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	j, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening config file: %s", path)
	}
	defer j.Close()

	b, err := io.ReadAll(j)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %v", j)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file %v", j)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config: %s", path)
	}

	return &c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		err := os.Mkdir(dir, dirMode)
		if err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}

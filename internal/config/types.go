package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPath is the configuration file looked up when no path is given.
const DefaultPath = "tasktide.yaml"

// CurrentVersion is the only configuration schema version understood.
const CurrentVersion = "1"

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// Seconds constructs a Duration from a whole number of seconds.
func Seconds(n int) Duration {
	return Duration{Duration: time.Duration(n) * time.Second}
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the tasktide.yaml document structure.
type Config struct {
	Version     string          `yaml:"version"`
	Scheduler   SchedulerSpec   `yaml:"scheduler"`
	Termination TerminationSpec `yaml:"termination"`
	Apps        AppsSpec        `yaml:"apps"`
	Search      SearchSpec      `yaml:"search"`
	API         APISpec         `yaml:"api"`
	Logging     LoggingSpec     `yaml:"logging"`
}

// SchedulerSpec configures the deadline scheduler.
type SchedulerSpec struct {
	TickInterval Duration `yaml:"tickInterval"`
}

// TerminationSpec configures the graceful termination protocol.
type TerminationSpec struct {
	GracePeriod      Duration `yaml:"gracePeriod"`
	FinalGracePeriod Duration `yaml:"finalGracePeriod"`
	// SaveAttempts is the total number of save signals sent before the kill.
	// Zero disables save attempts entirely.
	SaveAttempts int    `yaml:"saveAttempts"`
	ExitCode     uint32 `yaml:"exitCode"`
	SaveShortcut string `yaml:"saveShortcut"`
}

// AppsSpec extends the built-in application catalog.
type AppsSpec struct {
	SaveCapable   []string          `yaml:"saveCapable,omitempty"`
	WindowClasses map[string]string `yaml:"windowClasses,omitempty"`
}

// SearchSpec configures how search filters treat the registry.
type SearchSpec struct {
	Scope string `yaml:"scope"`
}

// APISpec configures the HTTP control API.
type APISpec struct {
	Addr string `yaml:"addr"`
}

// LoggingSpec configures the process logger.
type LoggingSpec struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	File          string `yaml:"file,omitempty"`
	OpenTelemetry bool   `yaml:"openTelemetry"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version:   CurrentVersion,
		Scheduler: SchedulerSpec{TickInterval: Seconds(1)},
		Termination: TerminationSpec{
			GracePeriod:      Seconds(2),
			FinalGracePeriod: Seconds(1),
			SaveAttempts:     2,
			ExitCode:         1,
			SaveShortcut:     "ctrl+s",
		},
		Search:  SearchSpec{Scope: "view"},
		API:     APISpec{Addr: "127.0.0.1:7878"},
		Logging: LoggingSpec{Level: "info", Format: "json"},
	}
}

// ApplyDefaults normalises textual fields after decoding.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Version) == "" {
		c.Version = CurrentVersion
	}
	c.Search.Scope = strings.ToLower(strings.TrimSpace(c.Search.Scope))
	if c.Search.Scope == "" {
		c.Search.Scope = "view"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if strings.TrimSpace(c.Termination.SaveShortcut) == "" {
		c.Termination.SaveShortcut = "ctrl+s"
	}
	if len(c.Apps.WindowClasses) > 0 {
		normalized := make(map[string]string, len(c.Apps.WindowClasses))
		for exe, class := range c.Apps.WindowClasses {
			normalized[strings.ToUpper(strings.TrimSpace(exe))] = strings.TrimSpace(class)
		}
		c.Apps.WindowClasses = normalized
	}
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

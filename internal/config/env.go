package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvTickInterval     = "TASKTIDE_TICK_INTERVAL"
	EnvGracePeriod      = "TASKTIDE_GRACE_PERIOD"
	EnvFinalGracePeriod = "TASKTIDE_FINAL_GRACE_PERIOD"
	EnvSaveAttempts     = "TASKTIDE_SAVE_ATTEMPTS"
	EnvAPIAddr          = "TASKTIDE_API_ADDR"
	EnvLogLevel         = "TASKTIDE_LOG_LEVEL"
	EnvLogFile          = "TASKTIDE_LOG_FILE"
)

// LookupFunc mirrors os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error unless explicit is true.
func LoadDotEnv(path string, explicit bool) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	durations := []struct {
		key string
		dst *Duration
	}{
		{EnvTickInterval, &c.Scheduler.TickInterval},
		{EnvGracePeriod, &c.Termination.GracePeriod},
		{EnvFinalGracePeriod, &c.Termination.FinalGracePeriod},
	}
	for _, d := range durations {
		value, ok := lookupTrimmed(lookup, d.key)
		if !ok {
			continue
		}
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.key, value, err)
		}
		d.dst.Duration = dur
		d.dst.explicit = true
	}

	if value, ok := lookupTrimmed(lookup, EnvSaveAttempts); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q: %w", EnvSaveAttempts, value, err)
		}
		c.Termination.SaveAttempts = n
	}
	if value, ok := lookupTrimmed(lookup, EnvAPIAddr); ok {
		c.API.Addr = value
	}
	if value, ok := lookupTrimmed(lookup, EnvLogLevel); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupTrimmed(lookup, EnvLogFile); ok {
		c.Logging.File = value
	}
	return nil
}

func lookupTrimmed(lookup LookupFunc, key string) (string, bool) {
	value, ok := lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

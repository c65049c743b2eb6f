package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/telemetry"
)

const maxSaveAttempts = 10

// Validate performs semantic checks the schema cannot express.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%s: unsupported version %q (supported: %s)", fieldPath("version"), c.Version, CurrentVersion)
	}
	if c.Scheduler.TickInterval.Duration <= 0 {
		return fmt.Errorf("%s: must be greater than zero", fieldPath("scheduler", "tickInterval"))
	}
	if c.Termination.GracePeriod.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("termination", "gracePeriod"))
	}
	if c.Termination.FinalGracePeriod.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("termination", "finalGracePeriod"))
	}
	if c.Termination.SaveAttempts < 0 || c.Termination.SaveAttempts > maxSaveAttempts {
		return fmt.Errorf("%s: must be between 0 and %d", fieldPath("termination", "saveAttempts"), maxSaveAttempts)
	}
	if _, err := runtime.ParseChord(c.Termination.SaveShortcut); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("termination", "saveShortcut"), err)
	}
	for i, name := range c.Apps.SaveCapable {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s[%d]: must be non-empty", fieldPath("apps", "saveCapable"), i)
		}
	}
	for exe, class := range c.Apps.WindowClasses {
		if exe == "" {
			return fmt.Errorf("%s: executable name must be non-empty", fieldPath("apps", "windowClasses"))
		}
		if class == "" {
			return fmt.Errorf("%s: must have a class name", fieldPath("apps", "windowClasses", exe))
		}
	}
	if _, err := engine.ParseSearchScope(c.Search.Scope); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("search", "scope"), err)
	}
	if c.API.Addr != "" {
		if _, _, err := net.SplitHostPort(c.API.Addr); err != nil {
			return fmt.Errorf("%s: %w", fieldPath("api", "addr"), err)
		}
	}
	if _, err := telemetry.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("logging", "level"), err)
	}
	if _, err := telemetry.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("logging", "format"), err)
	}
	return nil
}

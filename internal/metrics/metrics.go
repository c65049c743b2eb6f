package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save attempt results.
const (
	SaveResultSent     = "sent"
	SaveResultNoWindow = "no_window"
	SaveResultFailed   = "failed"
)

// Termination outcomes.
const (
	OutcomeTerminated = "terminated"
	OutcomeFailed     = "failed"
	OutcomeGone       = "gone"
)

var (
	registry = prometheus.NewRegistry()

	tasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tasktide",
		Name:      "tasks",
		Help:      "Number of tracked tasks by derived status.",
	}, []string{"status"})

	terminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasktide",
		Name:      "terminations_total",
		Help:      "Termination attempts by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	saveAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasktide",
		Name:      "save_attempts_total",
		Help:      "Save shortcut injections by result.",
	}, []string{"result"})

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tasktide",
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent in a scheduler tick, grace periods included.",
		Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30},
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tasktide",
		Name:      "build_info",
		Help:      "Build metadata for the running tasktide binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(tasks, terminations, saveAttempts, tickDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all tasktide metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetTasks records the number of tasks per status. Statuses absent from counts
// are reset to zero.
func SetTasks(counts map[string]int) {
	tasks.Reset()
	for status, n := range counts {
		if status == "" {
			continue
		}
		tasks.WithLabelValues(status).Set(float64(n))
	}
}

// ObserveTermination counts a finished termination attempt.
func ObserveTermination(trigger, outcome string) {
	if trigger == "" {
		trigger = "unknown"
	}
	terminations.WithLabelValues(trigger, outcome).Inc()
}

// ObserveSaveAttempt counts a save shortcut injection attempt.
func ObserveSaveAttempt(result string) {
	saveAttempts.WithLabelValues(result).Inc()
}

// ObserveTick records the duration of a scheduler tick.
func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

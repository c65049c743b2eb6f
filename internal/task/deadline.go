package task

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDeadline is returned when a deadline expression cannot be parsed.
var ErrInvalidDeadline = errors.New("invalid deadline")

// maxMinutes is the largest minute count a time.Duration can hold.
const maxMinutes = math.MaxInt64 / int64(time.Minute)

// DeadlineKind enumerates the supported deadline presets.
type DeadlineKind int

const (
	DeadlineIn30Minutes DeadlineKind = iota
	DeadlineIn1Hour
	DeadlineIn2Hours
	DeadlineCustom
)

// DeadlineSpec describes how a deadline should be computed.
type DeadlineSpec struct {
	Kind DeadlineKind
	At   time.Time
}

var (
	In30Minutes = DeadlineSpec{Kind: DeadlineIn30Minutes}
	In1Hour     = DeadlineSpec{Kind: DeadlineIn1Hour}
	In2Hours    = DeadlineSpec{Kind: DeadlineIn2Hours}
)

// At returns a custom deadline spec for an absolute timestamp.
func At(t time.Time) DeadlineSpec {
	return DeadlineSpec{Kind: DeadlineCustom, At: t}
}

// Resolve converts the spec into an absolute deadline relative to now.
func (s DeadlineSpec) Resolve(now time.Time) time.Time {
	switch s.Kind {
	case DeadlineIn30Minutes:
		return now.Add(30 * time.Minute)
	case DeadlineIn1Hour:
		return now.Add(time.Hour)
	case DeadlineIn2Hours:
		return now.Add(2 * time.Hour)
	default:
		return s.At
	}
}

func (s DeadlineSpec) String() string {
	switch s.Kind {
	case DeadlineIn30Minutes:
		return "+30m"
	case DeadlineIn1Hour:
		return "+1h"
	case DeadlineIn2Hours:
		return "+2h"
	default:
		return s.At.Format(time.RFC3339)
	}
}

// ParseDeadline accepts the presets ("30m", "1h", "2h", optionally prefixed
// with '+'), a bare number of minutes, any positive Go duration, or an RFC3339
// timestamp. Relative forms other than the presets resolve against now.
func ParseDeadline(expr string, now time.Time) (DeadlineSpec, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return DeadlineSpec{}, fmt.Errorf("%w: empty expression", ErrInvalidDeadline)
	}
	rel := strings.TrimPrefix(raw, "+")
	switch strings.ToLower(rel) {
	case "30m":
		return In30Minutes, nil
	case "1h", "60m":
		return In1Hour, nil
	case "2h", "120m":
		return In2Hours, nil
	}

	if minutes, err := strconv.Atoi(rel); err == nil {
		if minutes <= 0 {
			return DeadlineSpec{}, fmt.Errorf("%w: minutes must be positive, got %d", ErrInvalidDeadline, minutes)
		}
		if int64(minutes) > maxMinutes {
			return DeadlineSpec{}, fmt.Errorf("%w: %d minutes is out of range", ErrInvalidDeadline, minutes)
		}
		return At(now.Add(time.Duration(minutes) * time.Minute)), nil
	}
	if d, err := time.ParseDuration(rel); err == nil {
		if d <= 0 {
			return DeadlineSpec{}, fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidDeadline, d)
		}
		return At(now.Add(d)), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return At(ts), nil
	}
	return DeadlineSpec{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, expr)
}

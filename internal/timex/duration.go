// Package timex provides duration helpers shared by configuration loading and
// the token codec.
package timex

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var humanPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// maxSeconds is the largest second count a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseSeconds converts a human time string into seconds.
//
// Accepted forms are "<n>s", "<n>m", "<n>h", "<n>d" and a bare number of
// seconds ("30"). Anything else yields 0, which callers treat as "use the
// default".
func ParseSeconds(s string) int64 {
	if s == "" {
		return 0
	}

	m := humanPattern.FindStringSubmatch(s)
	if m == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 || n > maxSeconds {
			return 0
		}
		return n
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}

	var unit int64
	switch m[2] {
	case "s":
		unit = 1
	case "m":
		unit = 60
	case "h":
		unit = 60 * 60
	case "d":
		unit = 24 * 60 * 60
	default:
		return 0
	}
	if n > maxSeconds/unit {
		return 0
	}
	return n * unit
}

// ParseOr parses s with ParseSeconds and returns def when the result is not
// positive. Malformed values fail closed to the default.
func ParseOr(s string, def time.Duration) time.Duration {
	secs := ParseSeconds(s)
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// Duration wraps time.Duration so config files can carry either a human
// string ("15m", "7d", "30") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) set(s string) error {
	secs := ParseSeconds(s)
	if secs <= 0 {
		// fall back to Go syntax such as "1h30m"
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		d.Duration = v
		return nil
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		return d.set(value)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		d.Duration = time.Duration(n)
		return nil
	}
	return d.set(value.Value)
}

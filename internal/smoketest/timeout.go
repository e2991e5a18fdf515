package smoketest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeout accepts plain (fractional) seconds like "15" or "2.5", or a Go duration like "1m30s".
func ParseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("timeout must be positive, got %s", raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout [%s], use seconds (15) or a duration (15s)", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", raw)
	}
	return d, nil
}

// TimeoutFlag is a flag.Value backed by ParseTimeout.
type TimeoutFlag time.Duration

func (f *TimeoutFlag) String() string {
	return time.Duration(*f).String()
}

func (f *TimeoutFlag) Set(raw string) error {
	d, err := ParseTimeout(raw)
	if err != nil {
		return err
	}
	*f = TimeoutFlag(d)
	return nil
}

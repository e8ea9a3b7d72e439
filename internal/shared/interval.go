package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseInterval parses a lookback interval given either as an ISO-8601 duration
// (P2D, PT36H, P1W, P2DT) or as a Go duration string (48h, 90m).
//
// Calendar units are approximated: a year is 365 days and a month is 30 days.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty interval", ErrInvalidArgument)
	}

	var (
		d   time.Duration
		err error
	)
	if s[0] == 'P' || s[0] == 'p' {
		d, err = parseISO8601(strings.ToUpper(s))
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q: %v", ErrInvalidArgument, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval %q must be positive", ErrInvalidArgument, s)
	}
	return d, nil
}

func parseISO8601(s string) (time.Duration, error) {
	rest := s[1:]
	if rest == "" {
		return 0, fmt.Errorf("no components")
	}

	var (
		total   float64
		inTime  bool
		num     strings.Builder
		matched bool
	)
	for _, r := range rest {
		switch {
		case r == 'T':
			if inTime {
				return 0, fmt.Errorf("duplicate T designator")
			}
			if num.Len() > 0 {
				return 0, fmt.Errorf("number without unit before T")
			}
			inTime = true
		case (r >= '0' && r <= '9') || r == '.' || r == ',':
			if r == ',' {
				r = '.'
			}
			num.WriteRune(r)
		default:
			if num.Len() == 0 {
				return 0, fmt.Errorf("unit %q without a number", r)
			}
			v, err := strconv.ParseFloat(num.String(), 64)
			if err != nil {
				return 0, err
			}
			unit, err := isoUnit(r, inTime)
			if err != nil {
				return 0, err
			}
			total += v * float64(unit)
			num.Reset()
			matched = true
		}
	}
	if num.Len() > 0 {
		return 0, fmt.Errorf("trailing number without unit")
	}
	if !matched {
		return 0, fmt.Errorf("no components")
	}
	return time.Duration(total), nil
}

func isoUnit(r rune, inTime bool) (time.Duration, error) {
	if inTime {
		switch r {
		case 'H':
			return time.Hour, nil
		case 'M':
			return time.Minute, nil
		case 'S':
			return time.Second, nil
		}
	} else {
		switch r {
		case 'Y':
			return 365 * day, nil
		case 'M':
			return 30 * day, nil
		case 'W':
			return 7 * day, nil
		case 'D':
			return day, nil
		}
	}
	return 0, fmt.Errorf("unexpected designator %q", r)
}

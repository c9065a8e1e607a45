package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Speed is a speaking-rate multiplier. It decodes leniently from JSON:
// numbers and numeric strings are taken as-is, booleans become 1 or 0, null
// and the empty string become 0, and anything else becomes NaN. An absent
// field leaves Set false.
type Speed struct {
	Value float64
	Set   bool
}

// SpeedOf returns a Speed set to v.
func SpeedOf(v float64) Speed {
	return Speed{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Speed) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("relay: decode speed: %w", err)
	}
	*s = SpeedOf(coerceNumber(raw))
	return nil
}

// Or returns the speed, or def when none was supplied.
func (s Speed) Or(def float64) float64 {
	if !s.Set {
		return def
	}
	return s.Value
}

func coerceNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		trimmed := strings.TrimSpace(x)
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

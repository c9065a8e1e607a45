package relay

import (
	"math"
	"strconv"
	"strings"
)

const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0

	// MaxTextLength is Polly's per-request character ceiling.
	MaxTextLength = 3000
)

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// ClampSpeed limits a speed multiplier to [MinSpeed, MaxSpeed]. NaN maps to
// DefaultSpeed.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return DefaultSpeed
	}
	return math.Max(MinSpeed, math.Min(speed, MaxSpeed))
}

// RatePercent converts a speed multiplier into a prosody rate, e.g. 1.2 -> "120%".
// The percentage uses the shortest decimal form, so whole values carry no
// fractional part.
func RatePercent(speed float64) string {
	return strconv.FormatFloat(ClampSpeed(speed)*100, 'f', -1, 64) + "%"
}

// BuildSSML wraps text in a speak/prosody envelope at the given rate.
func BuildSSML(text, rate string) string {
	var b strings.Builder
	b.Grow(len(text) + len(rate) + 48)
	b.WriteString(`<speak><prosody rate="`)
	b.WriteString(rate)
	b.WriteString(`">`)
	b.WriteString(ssmlEscaper.Replace(text))
	b.WriteString(`</prosody></speak>`)
	return b.String()
}

package callout

import "strconv"

// Tier is the urgency bucket a sink colors a callout by.
type Tier int

const (
	TierNormal Tier = iota
	TierUrgent
	TierNow
)

func (t Tier) String() string {
	switch t {
	case TierNow:
		return "now"
	case TierUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// MarshalText encodes the tier as its name.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// TierOf buckets a countdown by its floored value so the number shown and
// its color always agree.
func TierOf(countdown float64) Tier {
	switch f := Floor(countdown); {
	case f <= 0:
		return TierNow
	case f <= 2:
		return TierUrgent
	default:
		return TierNormal
	}
}

// Display formats a countdown: the floored seconds, or NOW! once due.
func Display(countdown float64) string {
	f := Floor(countdown)
	if f <= 0 {
		return "NOW!"
	}
	return strconv.Itoa(f)
}

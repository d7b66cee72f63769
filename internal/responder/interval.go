package responder

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Interval is the range the pause between ticks is drawn from.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

// DefaultInterval waits between 45 and 120 seconds.
var DefaultInterval = Interval{Min: 45 * time.Second, Max: 120 * time.Second}

// Validate rejects ranges that cannot produce a whole-second draw.
func (iv Interval) Validate() error {
	if iv.Min < time.Second {
		return fmt.Errorf("poll interval minimum %s is below 1s", iv.Min)
	}
	if iv.Max < iv.Min {
		return fmt.Errorf("poll interval maximum %s is below minimum %s", iv.Max, iv.Min)
	}
	if ceilSeconds(iv.Min) > iv.Max/time.Second {
		return fmt.Errorf("poll interval %s-%s contains no whole second", iv.Min, iv.Max)
	}
	return nil
}

// Next draws a whole number of seconds uniformly from [Min, Max], both ends
// inclusive.
func (iv Interval) Next() time.Duration {
	lo := int64(ceilSeconds(iv.Min))
	hi := int64(iv.Max / time.Second)
	if hi < lo {
		hi = lo
	}
	return time.Duration(lo+rand.Int64N(hi-lo+1)) * time.Second
}

func ceilSeconds(d time.Duration) time.Duration {
	return (d + time.Second - 1) / time.Second
}

package access

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfter is the largest whole-second delay a time.Duration holds.
const maxRetryAfter = time.Duration(math.MaxInt64/int64(time.Second)) * time.Second

// parseRetryAfter reads a Retry-After header given either as delta seconds
// or as an HTTP-date. A date in the past yields zero and a delay too large
// for a time.Duration is capped at maxRetryAfter.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		if int64(secs) > int64(maxRetryAfter/time.Second) {
			return maxRetryAfter, true
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	delay := at.Sub(now)
	if delay < 0 {
		delay = 0
	}
	return delay.Round(time.Second), true
}

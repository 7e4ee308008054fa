package accounts

import (
	"time"
)

// IsOutsideThresholdPeriod reports whether the given timestamp is older
// than the period, e.g. "24h".
func IsOutsideThresholdPeriod(t time.Time, period string) (bool, error) {
	d, err := time.ParseDuration(period)
	if err != nil {
		return false, err
	}
	return time.Now().UTC().Sub(t.UTC()) > d, nil
}

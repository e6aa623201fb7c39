// Package translate turns parsed report entries into typed records. It owns
// the conversions the reports leave to the reader: local wall-clock times to
// epoch seconds, placeholder sentinels to nulls, and the GRES string to a
// usable GPU descriptor.
package translate

import (
	"fmt"
	"time"
)

// flatTimeLayout is the wall-clock format flat reports print timestamps in.
// There is no zone offset in it: the value is local time on the cluster, and
// only the cluster configuration knows which timezone that is.
const flatTimeLayout = "2006-01-02T15:04:05"

// sentinels the scheduler prints where a value does not exist yet.
var nullSentinels = map[string]bool{
	"":              true,
	"Unknown":       true,
	"None":          true,
	"None assigned": true,
	"(null)":        true,
}

// IsNullSentinel reports whether a flat report value stands for "no value".
func IsNullSentinel(s string) bool { return nullSentinels[s] }

// LocalTimeToUnix interprets a flat report timestamp in the cluster's
// timezone and returns epoch seconds. Sentinels ("Unknown" and friends)
// yield a nil timestamp, not an error.
func LocalTimeToUnix(s string, loc *time.Location) (*int64, error) {
	if IsNullSentinel(s) {
		return nil, nil
	}
	t, err := time.ParseInLocation(flatTimeLayout, s, loc)
	if err != nil {
		return nil, fmt.Errorf("parse local timestamp %q: %w", s, err)
	}
	epoch := t.Unix()
	return &epoch, nil
}

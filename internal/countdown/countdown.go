// Package countdown computes the time left until the event starts.
package countdown

import (
	"fmt"
	"time"
)

// Remaining is the time left broken into display units. All fields are
// zero once the target has passed.
type Remaining struct {
	Days     int  `json:"days"`
	Hours    int  `json:"hours"`
	Minutes  int  `json:"minutes"`
	Seconds  int  `json:"seconds"`
	Finished bool `json:"finished"`
}

// Until returns the time left from now to target, floored to whole seconds
func Until(now, target time.Time) Remaining {
	d := target.Sub(now)
	if d < 0 {
		return Remaining{Finished: true}
	}

	day := 24 * time.Hour
	return Remaining{
		Days:    int(d / day),
		Hours:   int(d % day / time.Hour),
		Minutes: int(d % time.Hour / time.Minute),
		Seconds: int(d % time.Minute / time.Second),
	}
}

// String renders two-digit fields, e.g. "05d 03h 09m 00s"
func (r Remaining) String() string {
	return fmt.Sprintf("%02dd %02dh %02dm %02ds", r.Days, r.Hours, r.Minutes, r.Seconds)
}

package countdown

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

var target = time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

func TestUntil(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Remaining
	}{
		{"days ahead", target.Add(-(3*24*time.Hour + 4*time.Hour + 5*time.Minute + 6*time.Second)), Remaining{Days: 3, Hours: 4, Minutes: 5, Seconds: 6}},
		{"floors partial seconds", target.Add(-1500 * time.Millisecond), Remaining{Seconds: 1}},
		{"exactly at target", target, Remaining{}},
		{"past target", target.Add(time.Second), Remaining{Finished: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Until(tt.now, target))
		})
	}
}

func TestRender(t *testing.T) {
	cases := []struct {
		label string
		now   time.Time
	}{
		{"ahead", target.Add(-(3*24*time.Hour + 4*time.Hour + 5*time.Minute + 6*time.Second))},
		{"subsecond", target.Add(-500 * time.Millisecond)},
		{"at", target},
		{"past", target.Add(time.Second)},
		{"long", target.Add(-(123*24*time.Hour + 23*time.Hour + 59*time.Minute + 59*time.Second + 900*time.Millisecond))},
	}

	var buf bytes.Buffer
	for _, c := range cases {
		r := Until(c.now, target)
		fmt.Fprintf(&buf, "%s: %s finished=%t\n", c.label, r, r.Finished)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "render", buf.Bytes())
}

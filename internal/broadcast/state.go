// Package broadcast classifies an episode's air time into a lifecycle state and
// renders the "airing at" text shown for upcoming episodes.
package broadcast

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// State is the derived broadcast lifecycle of an episode.
type State int

const (
	None State = iota
	Over
	Soon
	Live
	Recorded
)

// LiveWindow is how long an episode counts as on air after its start.
const LiveWindow = 90 * time.Minute

var stateNames = [...]string{"none", "over", "soon", "live", "recorded"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// dottedLayouts are day-first schedules as written on German sites. dateparse
// reads dotted dates month-first.
var dottedLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006 15:04:05",
	"02.01.2006",
	"2.1.2006",
}

// Clock returns the current instant.
type Clock func() time.Time

// ParseAirTime parses a free-form air time. Strings without an explicit zone
// are read in loc. The boolean is false for empty or unparseable input.
func ParseAirTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dottedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil || t.Year() == 0 {
		return time.Time{}, false
	}
	return t, true
}

// Resolve classifies raw against now. Dates are compared and rendered in loc
// using locale. Malformed input yields (None, "").
func Resolve(raw string, now time.Time, loc *time.Location, locale Locale) (State, string) {
	if loc == nil {
		loc = time.UTC
	}
	air, ok := ParseAirTime(raw, loc)
	if !ok {
		return None, ""
	}

	switch {
	case !air.Add(LiveWindow).After(now):
		return Recorded, ""
	case !air.After(now):
		return Live, ""
	}

	air = air.In(loc)
	days := calendarDays(now.In(loc), air)
	switch {
	case days > 6:
		return Soon, locale.date(air) + " " + locale.clock(air)
	case days == 0:
		return Soon, locale.Today + " " + locale.clock(air)
	default:
		return Soon, locale.weekday(air) + " " + locale.clock(air)
	}
}

// calendarDays counts whole calendar days from the date of a to the date of b.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Resolver binds a display location, locale and clock so callers only pass the
// air time.
type Resolver struct {
	loc    *time.Location
	locale Locale
	now    Clock
}

// NewResolver builds a Resolver. A nil clock uses time.Now and a nil location
// uses UTC.
func NewResolver(loc *time.Location, locale Locale, now Clock) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, locale: locale, now: now}
}

// Resolve classifies an optional air time against the resolver's clock.
func (r *Resolver) Resolve(live *string) (State, string) {
	if live == nil {
		return None, ""
	}
	return Resolve(*live, r.now(), r.loc, r.locale)
}


package broadcast

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Locale holds the words used when rendering an upcoming air time.
type Locale struct {
	Tag         language.Tag
	Today       string
	ClockSuffix string
	DaySuffix   string
	Weekdays    [7]string
	Months      [12]string
}

var German = Locale{
	Tag:         language.German,
	Today:       "Heute",
	ClockSuffix: " Uhr",
	DaySuffix:   ".",
	Weekdays:    [7]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
	Months: [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni",
		"Juli", "August", "September", "Oktober", "November", "Dezember"},
}

var English = Locale{
	Tag:         language.English,
	Today:       "Today",
	ClockSuffix: "h",
	Weekdays:    [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	Months: [12]string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
}

var locales = []Locale{German, English}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = l.Tag
	}
	return language.NewMatcher(tags)
}()

// LocaleFor picks the closest supported locale for a BCP 47 tag such as
// "de-DE" or "en". German is returned when nothing matches.
func LocaleFor(tag string) Locale {
	_, index := language.MatchStrings(matcher, tag)
	if index < 0 || index >= len(locales) {
		return German
	}
	return locales[index]
}

func (l Locale) weekday(t time.Time) string {
	return l.Weekdays[t.Weekday()]
}

func (l Locale) date(t time.Time) string {
	return fmt.Sprintf("%02d%s %s %d", t.Day(), l.DaySuffix, l.Months[t.Month()-1], t.Year())
}

func (l Locale) clock(t time.Time) string {
	if t.Minute() == 0 && t.Second() == 0 {
		return fmt.Sprintf("~%02d%s", t.Hour(), l.ClockSuffix)
	}
	return fmt.Sprintf("~%02d:%02d%s", t.Hour(), t.Minute(), l.ClockSuffix)
}

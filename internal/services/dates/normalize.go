// Package dates turns as-written deadline strings into timestamps.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/araddon/dateparse"
)

var (
	timezoneRegex   = regexp.MustCompile(`(?i)\b(CET|CEST|UTC|GMT|EST|EDT|PST|PDT)\b`)
	capsTokenRegex  = regexp.MustCompile(`\b[A-Z]{3,4}\b`)
	clockRegex      = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	atRegex         = regexp.MustCompile(`(?i)\s+at\s+`)
	ordinalRegex    = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	noiseRegex      = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|hrs|hours|hr|local time|of|on|by|no later than)\b`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	digitRegex      = regexp.MustCompile(`\d`)

	dayMonthYearRegex = regexp.MustCompile(`(?i)\b(\d{1,2})[\s.\-]+` + monthPattern + `\.?,?[\s.\-]+(\d{4})\b`)
	monthDayYearRegex = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	numericDateRegex  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[/.\-]\d{1,2}[/.\-]\d{4})\b`)
	monthYearRegex    = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{4})\b`)
)

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// calendarWords are upper-case tokens kept by the generic abbreviation filter
var calendarWords = map[string]bool{
	"JAN": true, "FEB": true, "MAR": true, "APR": true, "MAY": true, "JUN": true,
	"JUNE": true, "JUL": true, "JULY": true, "AUG": true, "SEP": true, "SEPT": true,
	"OCT": true, "NOV": true, "DEC": true,
	"MON": true, "TUE": true, "TUES": true, "WED": true, "THU": true, "THUR": true,
	"FRI": true, "SAT": true, "SUN": true,
}

// layouts are tried when dateparse cannot read the cleaned string
var layouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"2-1-2006",
	"02-Jan-2006",
	"January 2006",
	"Jan 2006",
}

// Normalize parses an as-written date. Timezone designators are dropped and the
// result is expressed in UTC. Returns nil when the string holds no usable date.
func Normalize(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	s = timezoneRegex.ReplaceAllString(s, " ")
	s = capsTokenRegex.ReplaceAllStringFunc(s, func(tok string) string {
		if calendarWords[tok] {
			return tok
		}
		return " "
	})
	s = collapse(s)

	hour, minute := -1, -1
	if m := clockRegex.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		if h < 24 && mi < 60 {
			hour, minute = h, mi
		}
		s = clockRegex.ReplaceAllString(s, " ")
		s = atRegex.ReplaceAllString(" "+s+" ", " ")
	}

	s = ordinalRegex.ReplaceAllString(s, "$1")
	s = noiseRegex.ReplaceAllString(s, " ")
	s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
	s = strings.Trim(collapse(s), " ,.;:-")

	if !digitRegex.MatchString(s) {
		return nil
	}

	parsed, ok := parse(s)
	if !ok {
		// Words around the date (weekday, place, remarks) defeat the whole-string parse
		parsed, ok = search(s)
		if !ok {
			return nil
		}
	}

	if hour >= 0 {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, time.UTC)
	}
	return &parsed
}

func parse(s string) (time.Time, bool) {
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.UTC(), true
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// search finds the first date-shaped window in s and parses only that window
func search(s string) (time.Time, bool) {
	if m := dayMonthYearRegex.FindStringSubmatch(s); m != nil {
		return fromParts(m[1], m[2], m[3])
	}
	if m := monthDayYearRegex.FindStringSubmatch(s); m != nil {
		return fromParts(m[2], m[1], m[3])
	}
	if m := numericDateRegex.FindString(s); m != "" {
		return parse(m)
	}
	if m := monthYearRegex.FindStringSubmatch(s); m != nil {
		return fromParts("1", m[1], m[2])
	}
	return time.Time{}, false
}

func fromParts(dayText, monthText, yearText string) (time.Time, bool) {
	day, err := strconv.Atoi(dayText)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(monthText)[:3]]
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// ApplyParsed fills every parsed date field from its as-written sibling.
// Fields without an as-written value keep their parsed value.
func ApplyParsed(p *models.Posting) {
	for _, name := range models.DateFields {
		raw := p.Field(name)
		if raw == nil {
			continue
		}
		*p.ParsedRef(name) = Normalize(*raw)
	}
}

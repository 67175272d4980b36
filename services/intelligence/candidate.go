package intelligence

import (
	"regexp"
	"strconv"
	"time"
)

// Candidate is a date/time slot extracted from a customer message.
type Candidate struct {
	Start time.Time
	End   time.Time
}

var (
	datePattern = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})`)
	timePattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// ExtractCandidate pulls a DD/MM/YYYY date plus HH:MM time out of free
// text and builds a slot of the given duration. Returns nil when either
// part is missing, invalid, or in the past.
func ExtractCandidate(text string, now time.Time, duration time.Duration) *Candidate {
	dateMatch := datePattern.FindStringSubmatch(text)
	timeMatch := timePattern.FindStringSubmatch(text)
	if dateMatch == nil || timeMatch == nil {
		return nil
	}

	day, _ := strconv.Atoi(dateMatch[1])
	month, _ := strconv.Atoi(dateMatch[2])
	year, _ := strconv.Atoi(dateMatch[3])
	hour, _ := strconv.Atoi(timeMatch[1])
	minute, _ := strconv.Atoi(timeMatch[2])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return nil
	}

	start := time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location())
	// Reject calendar rollover (e.g. 31/02) and past slots.
	if start.Day() != day || !start.After(now) {
		return nil
	}

	return &Candidate{Start: start, End: start.Add(duration)}
}

package booking

import (
	"regexp"
	"strings"
	"time"
)

var (
	phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)
	timePattern  = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

// dateLayouts are tried in order when parsing a preferred date. The flow
// prompts for YYYY-MM-DD but tolerates a few common spellings.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseDate parses a preferred-date input and returns it normalized to
// YYYY-MM-DD. ok is false when no known layout matches.
func ParseDate(raw string) (normalized string, ok bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ValidTime reports whether raw is a 24-hour HH:MM time.
func ValidTime(raw string) bool {
	return timePattern.MatchString(strings.TrimSpace(raw))
}

// Validate checks a candidate booking request against every field rule and
// returns one human-readable message per violated rule. All rules are
// evaluated; the error list for a record violating N rules has N entries.
//
// The past-date check compares the parsed date (midnight UTC) against now as
// a full timestamp, so a same-day booking is rejected once the day has
// started. This preserves the behavior operators already rely on.
func Validate(req Request, now time.Time) (valid bool, errs []string) {
	if strings.TrimSpace(req.PetOwnerName) == "" || len(strings.TrimSpace(req.PetOwnerName)) < 2 {
		errs = append(errs, "Pet owner name must be at least 2 characters")
	}

	if strings.TrimSpace(req.PetName) == "" {
		errs = append(errs, "Pet name is required")
	}

	if req.PhoneNumber == "" || !phonePattern.MatchString(req.PhoneNumber) {
		errs = append(errs, "Valid phone number is required")
	}

	if req.PreferredDate == "" {
		errs = append(errs, "Preferred date is required")
	} else {
		date, err := time.Parse("2006-01-02", req.PreferredDate)
		if err != nil || date.Before(now) {
			errs = append(errs, "Preferred date must be a valid future date")
		}
	}

	if req.PreferredTime == "" || !timePattern.MatchString(req.PreferredTime) {
		errs = append(errs, "Preferred time must be in HH:MM format (24-hour)")
	}

	return len(errs) == 0, errs
}

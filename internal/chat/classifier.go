package chat

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// specificKeywords is the fixed keyword set that marks a visitor message
// as a "specific" question about sensitive listing attributes. The list
// is a behavioral contract: gating thresholds are defined against exactly
// this substring match, so it must not be swapped for a smarter
// classifier.
var specificKeywords = []string{
	"price",
	"cost",
	"how much",
	"address",
	"location",
	"street",
	"bed",
	"bath",
	"sqft",
	"square",
	"size",
	"lot",
	"privacy",
	"private",
	"gate",
	"security",
	"showing",
	"tour",
	"visit",
	"access",
	"appraisal",
	"value",
	"worth",
	"owner",
	"motivated",
	"hoa",
	"tax",
}

// IsSpecificQuestion reports whether msg matches the fixed keyword set.
// Case-insensitive substring match, nothing cleverer.
func IsSpecificQuestion(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range specificKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// phoneCandidate grabs digit runs that could plausibly be a phone number;
// candidates are then validated properly before anything is captured.
var phoneCandidate = regexp.MustCompile(`\+?[0-9][0-9\-\.\(\)\s]{6,18}[0-9]`)

// FindPhoneNumber scans free text for a valid phone number and returns it
// in E.164 format, or "" when none is found.
func FindPhoneNumber(msg, defaultRegion string) string {
	if defaultRegion == "" {
		defaultRegion = "US"
	}

	for _, candidate := range phoneCandidate.FindAllString(msg, -1) {
		parsed, err := phonenumbers.Parse(candidate, defaultRegion)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return ""
}

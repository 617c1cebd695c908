package ingestion

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/estatedesk/backend/internal/storage/models"
)

var (
	pricePattern    = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	bedroomPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*(?:bed(?:room)?s?|br)\b`)
	bathroomPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d)?)\s*(?:bath(?:room)?s?|ba)\b`)
	sqftPattern     = regexp.MustCompile(`(?i)\b([0-9][0-9,]*)\s*(?:sq\.?\s?ft|sqft|square\s+feet)\b`)
	lotPattern      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*acre`)
)

// ParsePrice returns the first dollar amount found in text, or 0.
func ParsePrice(text string) float64 {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	cleaned := strings.ReplaceAll(m[1], ",", "")
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}

// ParseKeyStats pulls bedroom/bathroom/footage figures out of free text.
// Anything absent stays zero; nothing is guessed.
func ParseKeyStats(text string) models.KeyStats {
	var stats models.KeyStats

	if m := bedroomPattern.FindStringSubmatch(text); m != nil {
		stats.Bedrooms, _ = strconv.Atoi(m[1])
	}
	if m := bathroomPattern.FindStringSubmatch(text); m != nil {
		stats.Bathrooms, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := sqftPattern.FindStringSubmatch(text); m != nil {
		cleaned := strings.ReplaceAll(m[1], ",", "")
		stats.SqFt, _ = strconv.Atoi(cleaned)
	}
	if m := lotPattern.FindStringSubmatch(text); m != nil {
		stats.LotSize, _ = strconv.ParseFloat(m[1], 64)
	}

	return stats
}

// ClassifyTier applies the disclosure tier rule: strictly above the
// threshold is estate_guard, everything else is standard.
func ClassifyTier(price float64) string {
	if price > models.EstateGuardThreshold {
		return models.TierEstateGuard
	}
	return models.TierStandard
}

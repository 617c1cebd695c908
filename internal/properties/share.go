package properties

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/estatedesk/backend/internal/storage/models"
)

// SharePayload is everything the share dialog needs: a deep link that
// opens WhatsApp with the message prefilled, a direct link into the
// dashboard filtered to the listing, and plain text for the clipboard.
type SharePayload struct {
	WhatsAppURL string `json:"whatsapp_url"`
	AppURL      string `json:"app_url"`
	Summary     string `json:"summary"`
}

// BuildShare assembles the share payload for a listing. The summary only
// includes fields that have values; a sparse record still shares cleanly.
func (s *Service) BuildShare(userID, propertyID string) (*SharePayload, error) {
	p, err := s.store.GetProperty(userID, propertyID)
	if err != nil {
		return nil, err
	}

	appURL := fmt.Sprintf("%s/listings?property_id=%s", strings.TrimRight(s.appBaseURL, "/"), url.QueryEscape(p.PropertyID))
	summary := buildSummary(p, appURL)

	return &SharePayload{
		WhatsAppURL: "https://wa.me/?text=" + url.QueryEscape(summary),
		AppURL:      appURL,
		Summary:     summary,
	}, nil
}

func buildSummary(p *models.PropertyRecord, appURL string) string {
	var lines []string

	if p.Listing.Address != "" {
		lines = append(lines, p.Listing.Address)
	}
	if p.Listing.Price > 0 {
		lines = append(lines, fmt.Sprintf("Price: $%.0f", p.Listing.Price))
	}

	var stats []string
	if p.Listing.KeyStats.Bedrooms > 0 {
		stats = append(stats, fmt.Sprintf("%d bed", p.Listing.KeyStats.Bedrooms))
	}
	if p.Listing.KeyStats.Bathrooms > 0 {
		stats = append(stats, strconv.FormatFloat(p.Listing.KeyStats.Bathrooms, 'f', -1, 64)+" bath")
	}
	if p.Listing.KeyStats.SqFt > 0 {
		stats = append(stats, fmt.Sprintf("%d sqft", p.Listing.KeyStats.SqFt))
	}
	if len(stats) > 0 {
		lines = append(lines, strings.Join(stats, " / "))
	}

	if p.Listing.Narrative != "" {
		narrative := p.Listing.Narrative
		if len(narrative) > 280 {
			narrative = narrative[:277] + "..."
		}
		lines = append(lines, narrative)
	}

	lines = append(lines, appURL)
	return strings.Join(lines, "\n")
}

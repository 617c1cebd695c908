package ingestion

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/estatedesk/backend/internal/storage/models"
)

const degradedNarrative = "Listing imported with limited detail. Deep analysis is pending " +
	"due to AI quota exhaustion; re-run the sync once quota is available to fill in the " +
	"full property profile."

var whitespacePattern = regexp.MustCompile(`\s+`)

// degradedExtract builds a placeholder record out of raw page markup when
// every model variant has failed. Only the title, first heading, a
// representative image, and whatever figures plain parsing finds make it
// into the record.
func degradedExtract(userID, sourceURL, rawHTML string) *models.PropertyRecord {
	title := "Imported Listing"
	imageURL := ""
	pageText := rawHTML

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err == nil {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		} else if h := strings.TrimSpace(doc.Find("h1").First().Text()); h != "" {
			title = h
		}

		if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			imageURL = og
		} else if src, ok := doc.Find("img").First().Attr("src"); ok {
			imageURL = src
		}

		doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
			s.Remove()
		})
		pageText = doc.Find("body").Text()
	}

	pageText = whitespacePattern.ReplaceAllString(pageText, " ")

	price := ParsePrice(pageText)
	stats := ParseKeyStats(pageText)

	var media []string
	if imageURL != "" {
		media = []string{imageURL}
	}

	now := time.Now()
	return &models.PropertyRecord{
		PropertyID:      uuid.NewString(),
		UserID:          userID,
		Category:        models.CategoryResidential,
		TransactionType: models.TransactionSale,
		Status:          models.StatusActive,
		Tier:            ClassifyTier(price),
		Visibility:      models.DefaultVisibility(),
		Listing: models.ListingDetails{
			Address:   title,
			Price:     price,
			MediaURLs: media,
			KeyStats:  stats,
			Narrative: degradedNarrative,
		},
		AgentNotes: "Imported from " + sourceURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

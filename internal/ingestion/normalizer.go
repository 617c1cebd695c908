// Package ingestion turns arbitrary input — a listing URL, pasted text,
// or a voice-note transcript — into a canonical PropertyRecord.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/relay"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/fallback"
	"github.com/estatedesk/backend/pkg/logger"
)

const extractionSystemPrompt = `You are a real-estate data extractor. Extract listing data from the provided content into JSON with this exact shape:
{"category":"residential|commercial|land|rental","transaction_type":"sale|rent|lease","address":"","price":0,"bedrooms":0,"bathrooms":0,"sq_ft":0,"lot_size":0,"cap_rate":0,"zoning":"","media_urls":[],"narrative":"","amenities":{}}

Rules:
1. NEVER fabricate. Any field not present in the source must be 0, empty, or false.
2. price is the numeric asking price without currency symbols or separators.
3. narrative is a faithful 2-4 sentence description based only on the source.
4. Return JSON only.`

// extraction is the structured object every model variant must return.
type extraction struct {
	Category        string          `json:"category"`
	TransactionType string          `json:"transaction_type"`
	Address         string          `json:"address"`
	Price           float64         `json:"price"`
	Bedrooms        int             `json:"bedrooms"`
	Bathrooms       float64         `json:"bathrooms"`
	SqFt            int             `json:"sq_ft"`
	LotSize         float64         `json:"lot_size"`
	CapRate         float64         `json:"cap_rate"`
	Zoning          string          `json:"zoning"`
	MediaURLs       []string        `json:"media_urls"`
	Narrative       string          `json:"narrative"`
	Amenities       map[string]bool `json:"amenities"`
}

// Extractor is the slice of the LLM client ingestion depends on.
type Extractor interface {
	ExtractStructured(ctx context.Context, model, system, input string, out interface{}) error
	ExtractStructuredLegacy(ctx context.Context, model, system, input string, out interface{}) error
	Model() string
	LegacyModel() string
}

// Fetcher resolves a URL through the same-origin relay.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Cache stores extraction results keyed by source content so a re-sync
// of the same page does not burn quota. A nil cache disables caching.
type Cache interface {
	GetExtraction(ctx context.Context, key string, out interface{}) (bool, error)
	SetExtraction(ctx context.Context, key string, value interface{}) error
}

type Normalizer struct {
	extractor     Extractor
	fetcher       Fetcher
	cache         Cache
	maxInputChars int
}

func NewNormalizer(extractor Extractor, fetcher Fetcher, cache Cache, maxInputChars int) *Normalizer {
	if maxInputChars == 0 {
		maxInputChars = 30000
	}
	return &Normalizer{
		extractor:     extractor,
		fetcher:       fetcher,
		cache:         cache,
		maxInputChars: maxInputChars,
	}
}

// Result carries the normalized record plus how it was produced, so the
// handler can tell the user when only degraded extraction succeeded.
type Result struct {
	Record   *models.PropertyRecord
	Degraded bool
	Variant  string
}

// Ingest normalizes raw input into a PropertyRecord. The caller persists
// the returned record; Ingest itself has no side effects beyond network
// calls.
func (n *Normalizer) Ingest(ctx context.Context, userID, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty input")
	}

	isURL := relay.IsValidURL(input)
	content := input
	rawHTML := ""

	if isURL {
		fetched, err := n.fetcher.Fetch(ctx, input)
		if err != nil {
			// Degraded context: carry on with the URL string alone.
			logger.Warn("Relay fetch failed, continuing with URL only",
				zap.String("url", input),
				zap.Error(err),
			)
			content = "Listing URL (page content unavailable): " + input
		} else {
			rawHTML = fetched
			content = fetched
		}
	}

	content = truncateToRune(content, n.maxInputChars)

	ext, variant, err := n.extract(ctx, content)
	if err != nil {
		if isURL && rawHTML != "" {
			logger.Warn("All model variants failed, using degraded extraction",
				zap.String("url", input),
				zap.Error(err),
			)
			metrics.IngestionTotal.WithLabelValues("degraded").Inc()
			return &Result{
				Record:   degradedExtract(userID, input, rawHTML),
				Degraded: true,
				Variant:  "local",
			}, nil
		}
		metrics.IngestionTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.IngestionTotal.WithLabelValues(variant).Inc()
	return &Result{
		Record:  n.buildRecord(userID, ext),
		Variant: variant,
	}, nil
}

// truncateToRune caps s at max bytes without splitting a multi-byte
// rune, so truncated page content stays valid UTF-8.
func truncateToRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// extract runs the fixed fallback chain: primary model, then the
// secondary API surface, then the legacy model. Each attempt is
// independent; there is no backoff.
func (n *Normalizer) extract(ctx context.Context, content string) (*extraction, string, error) {
	cacheKey := extractionCacheKey(content)

	if n.cache != nil {
		var cached extraction
		hit, err := n.cache.GetExtraction(ctx, cacheKey, &cached)
		if err == nil && hit {
			metrics.CacheHits.WithLabelValues("extraction").Inc()
			return &cached, "cache", nil
		}
		metrics.CacheMisses.WithLabelValues("extraction").Inc()
	}

	attempts := []fallback.Attempt[*extraction]{
		{
			Name: "primary",
			Run: func(ctx context.Context) (*extraction, error) {
				var out extraction
				err := n.extractor.ExtractStructured(ctx, n.extractor.Model(), extractionSystemPrompt, content, &out)
				return &out, err
			},
		},
		{
			Name: "secondary-surface",
			Run: func(ctx context.Context) (*extraction, error) {
				var out extraction
				err := n.extractor.ExtractStructuredLegacy(ctx, n.extractor.Model(), extractionSystemPrompt, content, &out)
				return &out, err
			},
		},
		{
			Name: "legacy",
			Run: func(ctx context.Context) (*extraction, error) {
				var out extraction
				err := n.extractor.ExtractStructured(ctx, n.extractor.LegacyModel(), extractionSystemPrompt, content, &out)
				return &out, err
			},
		},
	}

	ext, pos, err := fallback.Run(ctx, logger.GetLogger(), attempts)
	if err != nil {
		return nil, "", err
	}

	if n.cache != nil {
		if cacheErr := n.cache.SetExtraction(ctx, cacheKey, ext); cacheErr != nil {
			logger.Debug("Failed to cache extraction", zap.Error(cacheErr))
		}
	}

	return ext, attempts[pos].Name, nil
}

func (n *Normalizer) buildRecord(userID string, ext *extraction) *models.PropertyRecord {
	category := ext.Category
	if category == "" {
		category = models.CategoryResidential
	}
	transaction := ext.TransactionType
	if transaction == "" {
		transaction = models.TransactionSale
	}

	now := time.Now()
	return &models.PropertyRecord{
		PropertyID:      uuid.NewString(),
		UserID:          userID,
		Category:        category,
		TransactionType: transaction,
		Status:          models.StatusActive,
		Tier:            ClassifyTier(ext.Price),
		Visibility:      models.DefaultVisibility(),
		Listing: models.ListingDetails{
			Address:   ext.Address,
			Price:     ext.Price,
			MediaURLs: ext.MediaURLs,
			KeyStats: models.KeyStats{
				Bedrooms:  ext.Bedrooms,
				Bathrooms: ext.Bathrooms,
				SqFt:      ext.SqFt,
				LotSize:   ext.LotSize,
				CapRate:   ext.CapRate,
				Zoning:    ext.Zoning,
			},
			Narrative: ext.Narrative,
		},
		Amenities: ext.Amenities,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

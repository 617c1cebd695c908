package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/backend/internal/storage/models"
)

// fakeExtractor scripts the outcome of each variant in the fallback
// chain: primary chat call, legacy completions surface, legacy model.
type fakeExtractor struct {
	primaryErr   error
	surfaceErr   error
	legacyErr    error
	result       extraction
	primaryCalls int
	surfaceCalls int
	legacyCalls  int
	lastInput    string
}

func (f *fakeExtractor) Model() string       { return "primary-model" }
func (f *fakeExtractor) LegacyModel() string { return "legacy-model" }

func (f *fakeExtractor) ExtractStructured(ctx context.Context, model, system, input string, out interface{}) error {
	f.lastInput = input
	if model == f.LegacyModel() {
		f.legacyCalls++
		if f.legacyErr != nil {
			return f.legacyErr
		}
	} else {
		f.primaryCalls++
		if f.primaryErr != nil {
			return f.primaryErr
		}
	}
	return f.fill(out)
}

func (f *fakeExtractor) ExtractStructuredLegacy(ctx context.Context, model, system, input string, out interface{}) error {
	f.surfaceCalls++
	if f.surfaceErr != nil {
		return f.surfaceErr
	}
	return f.fill(out)
}

func (f *fakeExtractor) fill(out interface{}) error {
	data, _ := json.Marshal(f.result)
	return json.Unmarshal(data, out)
}

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (m *memCache) GetExtraction(ctx context.Context, key string, out interface{}) (bool, error) {
	data, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (m *memCache) SetExtraction(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func sampleExtraction() extraction {
	return extraction{
		Category:        models.CategoryResidential,
		TransactionType: models.TransactionSale,
		Address:         "12 Oak Lane",
		Price:           500000,
		Bedrooms:        3,
		Bathrooms:       2,
		SqFt:            1200,
		Narrative:       "Charming three-bedroom home.",
	}
}

func TestIngestTextPrimarySuccess(t *testing.T) {
	ext := &fakeExtractor{result: sampleExtraction()}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 0)

	result, err := n.Ingest(context.Background(), "user-1", "Charming home, $500,000, 3 Bed 2 Bath, 1200 sqft")
	require.NoError(t, err)

	assert.Equal(t, "primary", result.Variant)
	assert.False(t, result.Degraded)
	assert.Equal(t, 1, ext.primaryCalls)
	assert.Zero(t, ext.surfaceCalls)
	assert.Zero(t, ext.legacyCalls)

	rec := result.Record
	assert.Equal(t, "12 Oak Lane", rec.Listing.Address)
	assert.Equal(t, 500000.0, rec.Listing.Price)
	assert.Equal(t, models.TierStandard, rec.Tier)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.NotEmpty(t, rec.PropertyID)
	assert.NotEmpty(t, rec.Visibility.GatedFields)
}

func TestIngestFallsThroughChainInOrder(t *testing.T) {
	ext := &fakeExtractor{
		result:     sampleExtraction(),
		primaryErr: errors.New("quota exceeded"),
		surfaceErr: errors.New("quota exceeded"),
	}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 0)

	result, err := n.Ingest(context.Background(), "user-1", "some pasted listing text")
	require.NoError(t, err)

	assert.Equal(t, "legacy", result.Variant)
	assert.Equal(t, 1, ext.primaryCalls)
	assert.Equal(t, 1, ext.surfaceCalls)
	assert.Equal(t, 1, ext.legacyCalls)
}

func TestIngestSecondarySurfaceStopsChain(t *testing.T) {
	ext := &fakeExtractor{
		result:     sampleExtraction(),
		primaryErr: errors.New("model not found"),
	}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 0)

	result, err := n.Ingest(context.Background(), "user-1", "some pasted listing text")
	require.NoError(t, err)

	assert.Equal(t, "secondary-surface", result.Variant)
	assert.Zero(t, ext.legacyCalls)
}

func TestIngestAllVariantsFailNonURL(t *testing.T) {
	boom := errors.New("quota exceeded")
	ext := &fakeExtractor{primaryErr: boom, surfaceErr: boom, legacyErr: boom}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 0)

	_, err := n.Ingest(context.Background(), "user-1", "some pasted listing text")
	assert.Error(t, err)
}

func TestIngestAllVariantsFailURLFallsBackToDegraded(t *testing.T) {
	boom := errors.New("quota exceeded")
	ext := &fakeExtractor{primaryErr: boom, surfaceErr: boom, legacyErr: boom}
	fetcher := &fakeFetcher{body: `<html><head><title>12 Oak Lane - For Sale</title>
		<meta property="og:image" content="https://img.example.com/main.jpg"></head>
		<body><h1>12 Oak Lane</h1><p>Asking $500,000. 3 Bed 2 Bath, 1200 sqft.</p></body></html>`}
	n := NewNormalizer(ext, fetcher, nil, 0)

	result, err := n.Ingest(context.Background(), "user-1", "https://listings.example.com/12-oak-lane")
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, "local", result.Variant)

	rec := result.Record
	assert.Equal(t, "12 Oak Lane - For Sale", rec.Listing.Address)
	assert.Equal(t, 500000.0, rec.Listing.Price)
	assert.Equal(t, 3, rec.Listing.KeyStats.Bedrooms)
	assert.Equal(t, 2.0, rec.Listing.KeyStats.Bathrooms)
	assert.Equal(t, 1200, rec.Listing.KeyStats.SqFt)
	assert.Equal(t, []string{"https://img.example.com/main.jpg"}, rec.Listing.MediaURLs)
	assert.Contains(t, rec.Listing.Narrative, "quota exhaustion")
	assert.Contains(t, rec.AgentNotes, "https://listings.example.com/12-oak-lane")
}

func TestIngestURLFetchFailureStillExtracts(t *testing.T) {
	ext := &fakeExtractor{result: sampleExtraction()}
	n := NewNormalizer(ext, &fakeFetcher{err: errors.New("connection refused")}, nil, 0)

	result, err := n.Ingest(context.Background(), "user-1", "https://listings.example.com/12-oak-lane")
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Variant)
}

func TestIngestEmptyInput(t *testing.T) {
	n := NewNormalizer(&fakeExtractor{}, &fakeFetcher{}, nil, 0)

	_, err := n.Ingest(context.Background(), "user-1", "   ")
	assert.Error(t, err)
}

func TestIngestUsesCacheOnRepeat(t *testing.T) {
	ext := &fakeExtractor{result: sampleExtraction()}
	cache := newMemCache()
	n := NewNormalizer(ext, &fakeFetcher{}, cache, 0)

	_, err := n.Ingest(context.Background(), "user-1", "Charming home, $500,000")
	require.NoError(t, err)
	require.Equal(t, 1, ext.primaryCalls)

	result, err := n.Ingest(context.Background(), "user-1", "Charming home, $500,000")
	require.NoError(t, err)
	assert.Equal(t, "cache", result.Variant)
	assert.Equal(t, 1, ext.primaryCalls, "cache hit must not spend quota")
	assert.Equal(t, "12 Oak Lane", result.Record.Listing.Address)
}

func TestIngestTruncatesOversizedContent(t *testing.T) {
	ext := &fakeExtractor{result: sampleExtraction()}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 100)

	long := make([]byte, 0, 1000)
	for i := 0; i < 100; i++ {
		long = append(long, "listing text "...)
	}

	_, err := n.Ingest(context.Background(), "user-1", string(long))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ext.lastInput), 100)
}

func TestIngestTruncationKeepsValidUTF8(t *testing.T) {
	ext := &fakeExtractor{result: sampleExtraction()}
	n := NewNormalizer(ext, &fakeFetcher{}, nil, 101)

	// 50 two-byte runes followed by a three-byte rune straddling the cap.
	input := strings.Repeat("é", 50) + "€ and more listing text"
	_, err := n.Ingest(context.Background(), "user-1", input)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("é", 50), ext.lastInput)
	assert.True(t, utf8.ValidString(ext.lastInput))
}

func TestTruncateToRune(t *testing.T) {
	assert.Equal(t, "abc", truncateToRune("abc", 10))
	assert.Equal(t, "ab", truncateToRune("abc", 2))
	assert.Equal(t, "éé", truncateToRune("ééé", 5))
	assert.Equal(t, "", truncateToRune("€", 2))
}

package ingestion

import (
	"crypto/sha256"
	"fmt"
)

func extractionCacheKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:16])
}

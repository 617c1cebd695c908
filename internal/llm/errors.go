package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Failure taxonomy surfaced to callers. Handlers map each class to a
// distinct user-facing message.
var (
	// ErrQuotaExhausted covers HTTP 429 and textual quota signals; the
	// user should wait or upgrade rather than retry immediately.
	ErrQuotaExhausted = errors.New("llm quota or rate limit exhausted")

	// ErrModelUnavailable covers HTTP 404 on the model resource.
	ErrModelUnavailable = errors.New("llm model unavailable")
)

var quotaSignals = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"resource_exhausted",
	"billing",
}

// Classify wraps err with the matching taxonomy sentinel, or returns it
// unchanged for the generic case so the original message passes through.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrQuotaExhausted, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelUnavailable, apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	lower := strings.ToLower(err.Error())
	for _, signal := range quotaSignals {
		if strings.Contains(lower, signal) {
			return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
	}

	return err
}

func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}

package llm

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAPIErrorStatusCodes(t *testing.T) {
	quota := Classify(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"})
	assert.True(t, IsQuotaExhausted(quota))

	missing := Classify(&openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "no such model"})
	assert.True(t, IsModelUnavailable(missing))

	server := Classify(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"})
	assert.False(t, IsQuotaExhausted(server))
	assert.False(t, IsModelUnavailable(server))
}

func TestClassifyTextualQuotaSignals(t *testing.T) {
	for _, msg := range []string{
		"You exceeded your current quota",
		"Rate limit reached for requests",
		"RESOURCE_EXHAUSTED: try later",
		"billing hard limit reached",
	} {
		assert.True(t, IsQuotaExhausted(Classify(errors.New(msg))), msg)
	}
}

func TestClassifyGenericPassthrough(t *testing.T) {
	original := errors.New("connection reset by peer")
	classified := Classify(original)
	assert.Equal(t, original, classified)
	assert.False(t, IsQuotaExhausted(classified))
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify(nil))
}

func TestDecodeJSONContentToleratesFences(t *testing.T) {
	var out struct {
		Price float64 `json:"price"`
	}

	err := decodeJSONContent("```json\n{\"price\": 500000}\n```", &out)
	assert.NoError(t, err)
	assert.Equal(t, 500000.0, out.Price)

	err = decodeJSONContent("Here is the data: {\"price\": 1}", &out)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, out.Price)

	err = decodeJSONContent("no json here", &out)
	assert.Error(t, err)
}

package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteKey(t *testing.T) {
	first := QuoteKey("client-1")
	second := QuoteKey("client-1")

	assert.True(t, strings.HasPrefix(first, "quotes/client-1/"))
	assert.True(t, strings.HasSuffix(first, ".xlsx"))
	assert.NotEqual(t, first, second)
}

package tokens

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCuratedLowercaseAndValid(t *testing.T) {
	out := Curated(testLogger())

	require.Len(t, out, len(rawCurated))
	for _, addr := range out {
		assert.Equal(t, strings.ToLower(addr), addr)
		assert.True(t, strings.HasPrefix(addr, "0x"))
		assert.Len(t, addr, 42)
	}
}

func TestCuratedDropsMalformedAndDuplicates(t *testing.T) {
	orig := rawCurated
	defer func() { rawCurated = orig }()

	rawCurated = []string{
		"0x4200000000000000000000000000000000000006",
		"0x4200000000000000000000000000000000000006", // duplicate
		"0X4200000000000000000000000000000000000006", // duplicate, odd prefix casing
		"not-an-address",
		"0x123", // too short
	}

	out := Curated(testLogger())

	assert.Equal(t, []string{"0x4200000000000000000000000000000000000006"}, out)
}

func TestTrendingKeywordsNonEmpty(t *testing.T) {
	require.NotEmpty(t, TrendingKeywords)
	for _, kw := range TrendingKeywords {
		assert.Equal(t, strings.ToLower(kw), kw)
	}
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Jane Doe", "jane-doe"},
		{"accents", "José Álvarez", "jose-alvarez"},
		{"punctuation", "Dr. Jane Q. Doe, Jr.", "dr-jane-q-doe-jr"},
		{"collapse_runs", "jane   --  doe", "jane-doe"},
		{"leading_trailing", "  Jane Doe!  ", "jane-doe"},
		{"digits", "MKBHD 2", "mkbhd-2"},
		{"empty", "", ""},
		{"only_symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jane doe", NormalizeName("  Jane   DOE "))
	assert.Equal(t, "jose alvarez", NormalizeName("José Álvarez"))
	assert.Equal(t, NormalizeName("Jane Doe"), NormalizeName("JANE  doe"))
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"jane", "doe"}, NameTokens(" Jane  DOE "))
	assert.Empty(t, NameTokens("   "))
}

func TestBucketConfidence(t *testing.T) {
	tests := []struct {
		score int
		want  Confidence
	}{
		{100, ConfidenceHigh},
		{70, ConfidenceHigh},
		{69, ConfidenceMedium},
		{40, ConfidenceMedium},
		{39, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketConfidence(tt.score), "score %d", tt.score)
	}
}

func TestTierForConfidence(t *testing.T) {
	assert.Equal(t, TierVerified, TierForConfidence(ConfidenceHigh))
	assert.Equal(t, TierRising, TierForConfidence(ConfidenceMedium))
	assert.Equal(t, TierCommunity, TierForConfidence(ConfidenceLow))
}

package memtier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLimits_LowTier(t *testing.T) {
	assert.Equal(t, lowTier, DetectLimits(2))
}

func TestDetectLimits_MediumTier(t *testing.T) {
	assert.Equal(t, mediumTier, DetectLimits(6))
}

func TestDetectLimits_HighTier(t *testing.T) {
	assert.Equal(t, highTier, DetectLimits(16))
}

func TestDetectLimits_BoundaryAtFourGB(t *testing.T) {
	assert.Equal(t, mediumTier, DetectLimits(4))
}

func TestDetectLimits_BoundaryAtEightGB(t *testing.T) {
	assert.Equal(t, highTier, DetectLimits(8))
}

func TestDetectLimits_ZeroOverride_UsesLiveDetection(t *testing.T) {
	limits := DetectLimits(0)
	assert.NotZero(t, limits.MaxChunks)
	assert.NotZero(t, limits.MaxNodes)
}

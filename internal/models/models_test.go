package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	listing := Listing{ExpiresAt: now}

	assert.False(t, listing.Expired(now.Add(-time.Second)))
	assert.True(t, listing.Expired(now), "expires at exactly ExpiresAt")
	assert.True(t, listing.Expired(now.Add(time.Second)))
}

func TestItemDescriptorScanRoundtrip(t *testing.T) {
	item := ItemDescriptor{
		ItemID:   "enchanted-book",
		Quantity: 3,
		Metadata: map[string]string{"enchantment": "mending"},
	}

	blob, err := item.Value()
	require.NoError(t, err)

	var decoded ItemDescriptor
	require.NoError(t, decoded.Scan(blob))
	assert.Equal(t, item, decoded)

	assert.Error(t, decoded.Scan(42))
}

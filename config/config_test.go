package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "not-a-number")

	assert.Equal(t, 45, getInt("CATALOG_PAGE_SIZE", 45))

	t.Setenv("CATALOG_PAGE_SIZE", "12")
	assert.Equal(t, 12, getInt("CATALOG_PAGE_SIZE", 45))
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("LISTING_LIFETIME", "soon")

	assert.Equal(t, 7*24*time.Hour, getDuration("LISTING_LIFETIME", 7*24*time.Hour))
}

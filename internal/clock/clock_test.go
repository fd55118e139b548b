package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), Today(c))

	c.Advance(time.Hour)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), Today(c))

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, RealClock{}.Now().Location())
}

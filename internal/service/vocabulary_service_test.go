package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSRSFailedReview(t *testing.T) {
	interval, ease, next := CalculateSRS(1, 14, 2.5)

	// A lapse resets the interval and penalizes the ease factor.
	assert.Equal(t, 1, interval)
	assert.InDelta(t, 2.3, ease, 1e-9)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 1), next, 2*time.Second)
}

func TestCalculateSRSFirstSuccessfulReview(t *testing.T) {
	interval, ease, _ := CalculateSRS(5, 1, 2.5)

	assert.Equal(t, 6, interval)
	assert.InDelta(t, 2.6, ease, 1e-9)
}

func TestCalculateSRSIntervalGrowsWithEase(t *testing.T) {
	interval, ease, _ := CalculateSRS(4, 6, 2.5)

	assert.Equal(t, 15, interval)
	assert.InDelta(t, 2.5, ease, 1e-9)
}

func TestCalculateSRSHesitantRecall(t *testing.T) {
	interval, ease, _ := CalculateSRS(3, 10, 2.0)

	assert.Equal(t, 20, interval)
	assert.InDelta(t, 1.86, ease, 1e-9)
}

func TestCalculateSRSEaseFloor(t *testing.T) {
	_, ease, _ := CalculateSRS(0, 3, 1.4)
	assert.Equal(t, 1.3, ease)

	_, ease, _ = CalculateSRS(3, 3, 1.3)
	assert.GreaterOrEqual(t, ease, 1.3)
}

func TestCleanWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello!  ", "hello"},
		{"WELL-KNOWN", "well-known"},
		{"don't", "dont"},
		{"ice cream", "ice cream"},
		{"?!.,", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanWord(tt.in), "input %q", tt.in)
	}
}

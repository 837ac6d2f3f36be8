package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBookingIntent(t *testing.T) {
	d := NewDetector()

	matches := []string{
		"I want to book an appointment",
		"can I SCHEDULE something for my cat",
		"my dog needs to see a vet",
		"we'd like to visit tomorrow",
		"need appointment asap",
	}
	for _, msg := range matches {
		assert.True(t, d.IsBookingIntent(msg), "message %q", msg)
	}

	nonMatches := []string{
		"my dog has been sneezing a lot",
		"what vaccines does a kitten need?",
		"hello",
	}
	for _, msg := range nonMatches {
		assert.False(t, d.IsBookingIntent(msg), "message %q", msg)
	}
}

func TestIsCancellation(t *testing.T) {
	d := NewDetector()

	matches := []string{
		"cancel",
		"CANCEL that please",
		"never mind",
		"nevermind",
		"ok stop",
		"abort",
		"forget it",
	}
	for _, msg := range matches {
		assert.True(t, d.IsCancellation(msg), "message %q", msg)
	}

	assert.False(t, d.IsCancellation("my cat is named Mittens"))
	assert.False(t, d.IsCancellation(""))
}

func TestNilDetectorIsSafe(t *testing.T) {
	var d *Detector
	assert.False(t, d.IsBookingIntent("book"))
	assert.False(t, d.IsCancellation("cancel"))
}

package booking

import "strings"

// Detector identifies booking intent and cancellation keywords in visitor
// messages. Matching is a case-insensitive substring check over a fixed
// keyword list; there is no priority among keywords.
type Detector struct {
	bookingKeywords []string
	cancelKeywords  []string
}

// NewDetector returns a detector with the standard keyword lists.
func NewDetector() *Detector {
	return &Detector{
		bookingKeywords: []string{
			"book",
			"appointment",
			"schedule",
			"visit",
			"see a vet",
			"see the vet",
			"make an appointment",
			"need appointment",
			"want appointment",
		},
		cancelKeywords: []string{
			"cancel",
			"nevermind",
			"never mind",
			"stop",
			"abort",
			"forget it",
		},
	}
}

// IsBookingIntent reports whether the message expresses appointment intent.
func (d *Detector) IsBookingIntent(message string) bool {
	return d != nil && containsAny(message, d.bookingKeywords)
}

// IsCancellation reports whether the message expresses cancellation intent.
func (d *Detector) IsCancellation(message string) bool {
	return d != nil && containsAny(message, d.cancelKeywords)
}

func containsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

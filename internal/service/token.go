package service

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// trackingTokenBytes gives ~26 base32 characters of entropy, enough that
// a token cannot be guessed or derived from the booking ID.
const trackingTokenBytes = 16

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTrackingToken generates an opaque, unguessable token used as the
// only customer-facing key for a booking.
func NewTrackingToken() string {
	buf := make([]byte, trackingTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return strings.ToLower(tokenEncoding.EncodeToString(buf))
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"towdispatch/internal/domain"
)

// Mailer sends the tracking-link email after a booking is submitted.
// Sending is always best-effort for callers: a failed send is logged and
// swallowed, never failing the booking.
type Mailer interface {
	SendTrackingLink(ctx context.Context, booking *domain.Booking, trackingURL string) error
}

// ResendMailer delivers mail through the Resend HTTP API.
type ResendMailer struct {
	apiKey string
	from   string
	client *http.Client
}

// NewResendMailer creates a Resend-backed mailer.
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

const resendEndpoint = "https://api.resend.com/emails"

// SendTrackingLink emails the customer their tracking URL.
func (m *ResendMailer) SendTrackingLink(ctx context.Context, booking *domain.Booking, trackingURL string) error {
	if booking.CustomerEmail == "" {
		return nil
	}

	payload := map[string]any{
		"from":    m.from,
		"to":      booking.CustomerEmail,
		"subject": "Demande de remorquage reçue - Suivez votre chauffeur",
		"html": fmt.Sprintf(
			`<p>Bonjour %s,</p>
<p>Nous avons bien reçu votre demande de <strong>%s</strong>.</p>
<p>Emplacement: %s<br/>Quand: %s<br/>Distance: %.0f km</p>
<p><a href="%s">Suivre mon chauffeur</a></p>`,
			booking.CustomerName, booking.ServiceType, booking.PickupLocation,
			booking.Timing, booking.DistanceKm, trackingURL,
		),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, detail)
	}

	return nil
}

// LogMailer logs instead of sending. Used when no mail API key is
// configured, e.g. in development.
type LogMailer struct{}

// SendTrackingLink logs the tracking URL that would have been emailed.
func (LogMailer) SendTrackingLink(_ context.Context, booking *domain.Booking, trackingURL string) error {
	log.Printf("[MAIL] tracking link for booking %s to %s: %s", booking.ID, booking.CustomerEmail, trackingURL)
	return nil
}

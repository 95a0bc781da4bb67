package geo

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Point is a parsed coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// UnparsableLocationError is returned when no supported pattern yields a
// valid coordinate pair. FinalURL carries the (truncated) URL that was
// last inspected, for diagnostics.
type UnparsableLocationError struct {
	FinalURL string
}

func (e *UnparsableLocationError) Error() string {
	if e.FinalURL == "" {
		return "could not extract coordinates from location link"
	}
	return fmt.Sprintf("could not extract coordinates, final url: %s", e.FinalURL)
}

// Desktop user agent. Shorteners serve an interstitial page to unknown
// clients instead of redirecting to the full Maps URL.
const resolverUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const maxDiagnosticURLLen = 200

const defaultResolveTimeout = 10 * time.Second

// directPatterns are tried, in order, against the raw input. The first
// match whose values are in range wins.
var directPatterns = []*regexp.Regexp{
	regexp.MustCompile(`q=([-\d.]+),([-\d.]+)`),     // Google Maps q parameter
	regexp.MustCompile(`@([-\d.]+),([-\d.]+)`),      // Google Maps @ parameter
	regexp.MustCompile(`loc:([-\d.]+)\+([-\d.]+)`),  // WhatsApp location format
	regexp.MustCompile(`([-\d.]+),([-\d.]+)`),       // bare lat,lng fallback
}

// resolvedPatterns are tried against the final URL after following a
// shortened link's redirects. Resolved Maps URLs additionally use the
// /search/ and !3d/!4d embedded-detail forms, and may insert a "+"
// before the longitude.
var resolvedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`search/([-\d.]+),\+?([-\d.]+)`),
	regexp.MustCompile(`q=([-\d.]+),\+?([-\d.]+)`),
	regexp.MustCompile(`@([-\d.]+),\+?([-\d.]+)`),
	regexp.MustCompile(`loc:([-\d.]+)\+([-\d.]+)`),
	regexp.MustCompile(`!3d([-\d.]+)!4d([-\d.]+)`),
	regexp.MustCompile(`([-\d.]+),\+?([-\d.]+)`),
}

var shortenerMarkers = []string{"goo.gl", "maps.app.goo.gl"}

// IsWhatsAppLink reports whether the raw input carries a WhatsApp domain
// marker. Used to tag manual location shares with their source.
func IsWhatsAppLink(s string) bool {
	return strings.Contains(s, "wa.me") || strings.Contains(s, "whatsapp.com")
}

// Resolver extracts coordinates from location-sharing links and free text.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a Resolver. The client is used only to follow
// shortened-URL redirects; it should carry whatever timeout the caller
// wants imposed on that network hop. A nil client falls back to one with
// a 10-second timeout, so a hanging shortener can never pin a request.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: defaultResolveTimeout}
	}
	return &Resolver{client: client}
}

// Parse runs the direct pattern set against the input without any
// network access.
func (r *Resolver) Parse(input string) (Point, bool) {
	return matchPatterns(directPatterns, input)
}

// Resolve extracts a coordinate pair from input. Direct patterns are
// tried first; if none match and the input looks like a known shortener
// URL, the redirect chain is followed and the resolved pattern set is
// run against the final URL.
func (r *Resolver) Resolve(ctx context.Context, input string) (Point, error) {
	if p, ok := r.Parse(input); ok {
		return p, nil
	}

	if !looksShortened(input) {
		return Point{}, &UnparsableLocationError{FinalURL: truncate(input)}
	}

	return r.FollowAndParse(ctx, input)
}

// FollowAndParse fetches rawURL following all redirects and runs the
// resolved pattern set against the final URL.
func (r *Resolver) FollowAndParse(ctx context.Context, rawURL string) (Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Point{}, fmt.Errorf("build resolve request: %w", err)
	}
	req.Header.Set("User-Agent", resolverUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("resolve shortened url: %w", err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()

	if p, ok := matchPatterns(resolvedPatterns, finalURL); ok {
		return p, nil
	}

	return Point{}, &UnparsableLocationError{FinalURL: truncate(finalURL)}
}

// matchPatterns tries each pattern in order. A match with out-of-range
// or malformed values is treated as a non-match and the next pattern is
// tried.
func matchPatterns(patterns []*regexp.Regexp, s string) (Point, bool) {
	for _, pattern := range patterns {
		m := pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lng, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if !ValidCoordinates(lat, lng) {
			continue
		}
		return Point{Lat: lat, Lng: lng}, true
	}
	return Point{}, false
}

func looksShortened(s string) bool {
	for _, marker := range shortenerMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func truncate(s string) string {
	if len(s) > maxDiagnosticURLLen {
		return s[:maxDiagnosticURLLen]
	}
	return s
}

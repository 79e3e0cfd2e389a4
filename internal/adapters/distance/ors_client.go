package distance

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ORSClient implements RoutingAPI and AreaGeocoder using OpenRouteService.
//
// It coordinates:
//   - Directions lookups returning road distance in miles and path geometry
//   - Area geocoding for candidate searches
//   - Client-side rate limiting and retry/backoff
//
// The client is safe for concurrent use.
type ORSClient struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	profile     string
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

type ORSOption func(*ORSClient)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSClient) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithProfile(p string) ORSOption {
	return func(o *ORSClient) { o.profile = p }
}

func WithTimeout(d time.Duration) ORSOption {
	return func(o *ORSClient) { o.session.Timeout = d }
}

// WithRequestsPerMinute caps outgoing calls. Zero disables the limiter.
func WithRequestsPerMinute(n int) ORSOption {
	return func(o *ORSClient) {
		if n <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithRetry sets the attempt budget and initial backoff for transient failures.
func WithRetry(attempts int, backoff time.Duration) ORSOption {
	return func(o *ORSClient) {
		if attempts > 0 {
			o.maxAttempts = attempts
		}
		if backoff > 0 {
			o.backoff = backoff
		}
	}
}

func NewORSClient(apiKey string, opts ...ORSOption) (*ORSClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	client := &ORSClient{
		session:     &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		baseURL:     "https://api.openrouteservice.org",
		profile:     "driving-car",
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

package license

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultKeyAttempts bounds how many times provisioning retries key
// generation after a collision before giving up.
const DefaultKeyAttempts = 10

// Service implements the license lifecycle and seat-activation engine on
// top of a Store. All multi-step mutations run inside Store.InTx so
// concurrent requests against the same license observe consistent state.
type Service struct {
	store       Store
	logger      *slog.Logger
	keyAttempts int
	now         func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithKeyAttempts overrides the key-generation retry bound.
func WithKeyAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.keyAttempts = n
		}
	}
}

// WithClock overrides the time source (used in expiration tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new license service.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:       store,
		logger:      logger,
		keyAttempts: DefaultKeyAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// expirationLayouts are the accepted ISO-8601 shapes, tried in order.
// Layouts without a zone marker are interpreted as UTC.
var expirationLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339, false},         // 2025-12-31T23:59:59Z / +02:00
	{"2006-01-02T15:04:05", true}, // naive timestamp
	{"2006-01-02", true},          // date only
}

// parseExpiration parses an optional expiration date string. An empty
// string yields nil (no expiration). The result is normalized to UTC.
func parseExpiration(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, l := range expirationLayouts {
		var (
			t   time.Time
			err error
		)
		if l.naive {
			t, err = time.ParseInLocation(l.layout, raw, time.UTC)
		} else {
			t, err = time.Parse(l.layout, raw)
		}
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, Validationf("invalid expiration_date %q: use ISO 8601 format (e.g. 2025-12-31T23:59:59Z)", raw)
}

// Package daykey resolves the ranking day in a fixed reference timezone.
//
// Scores accumulate per calendar day of that timezone regardless of where the
// process runs. Every call reads the clock again; nothing is memoised, so a
// long-lived Provider rolls over at the boundary on its own.
package daykey

import (
	"fmt"
	"time"
	_ "time/tzdata" // reference zones must resolve on hosts without zoneinfo
)

// DefaultTimezone is the reference zone used when none is configured.
const DefaultTimezone = "Asia/Kolkata"

// Layout is the textual day key format.
const Layout = "2006-01-02"

// Provider computes day keys and day boundaries.
type Provider struct {
	loc *time.Location
	now func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a Provider for loc. A nil loc means UTC.
func New(loc *time.Location, opts ...Option) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	p := &Provider{loc: loc, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Load resolves an IANA zone name and returns a Provider for it.
func Load(name string, opts ...Option) (*Provider, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc, opts...), nil
}

// Default returns a Provider for DefaultTimezone, falling back to UTC if the
// zone cannot be loaded.
func Default() *Provider {
	p, err := Load(DefaultTimezone)
	if err != nil {
		return New(time.UTC)
	}
	return p
}

// Location returns the reference zone.
func (p *Provider) Location() *time.Location { return p.loc }

// Now reads the provider's clock.
func (p *Provider) Now() time.Time { return p.now() }

// CurrentDayKey returns today's key in the reference zone.
func (p *Provider) CurrentDayKey() string { return p.KeyAt(p.now()) }

// NextBoundary returns the first instant of the next day in the reference zone.
func (p *Provider) NextBoundary() time.Time { return p.BoundaryAfter(p.now()) }

// KeyAt returns the day key containing t.
func (p *Provider) KeyAt(t time.Time) string {
	return t.In(p.loc).Format(Layout)
}

// BoundaryAfter returns the start of the day following the one containing t.
func (p *Provider) BoundaryAfter(t time.Time) time.Time {
	y, m, d := t.In(p.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, p.loc)
}

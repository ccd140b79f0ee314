package notifier

import (
	"sync"

	"golang.org/x/time/rate"
)

// perProviderLimiter hands out one token-bucket limiter per provider ID,
// shared by every HTTP-based transport so each provider's rate cap is
// independent of the others'.
type perProviderLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPerProviderLimiter() *perProviderLimiter {
	return &perProviderLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (p *perProviderLimiter) allow(providerID string, maxPerHour, burst int) bool {
	if maxPerHour <= 0 {
		maxPerHour = 100
	}
	if burst <= 0 {
		burst = 10
	}

	p.mu.Lock()
	l, ok := p.limiters[providerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(maxPerHour)/3600), burst)
		p.limiters[providerID] = l
	}
	p.mu.Unlock()

	return l.Allow()
}

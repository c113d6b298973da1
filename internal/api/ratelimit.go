package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiter hands out one token bucket per tenant.
type TenantLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	return &TenantLimiter{rps: rate.Limit(rps), burst: burst, limiters: map[string]*rate.Limiter{}}
}

// Allow reports whether tenant may start a request now.
func (l *TenantLimiter) Allow(tenant string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[tenant]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[tenant] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

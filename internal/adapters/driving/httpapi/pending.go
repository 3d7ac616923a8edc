package httpapi

import (
	"sync"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// pendingTTL bounds how long a browser may take to return from the provider.
const pendingTTL = 10 * time.Minute

type pendingEntry struct {
	userID  string
	request domain.AuthorizationRequest
	expires time.Time
}

// pendingAuth holds in-flight authorization requests keyed by state. Each
// state can be taken once.
type pendingAuth struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

func newPendingAuth(ttl time.Duration, now func() time.Time) *pendingAuth {
	return &pendingAuth{ttl: ttl, now: now, entries: make(map[string]pendingEntry)}
}

func (p *pendingAuth) put(state, userID string, req domain.AuthorizationRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for k, e := range p.entries {
		if now.After(e.expires) {
			delete(p.entries, k)
		}
	}
	p.entries[state] = pendingEntry{userID: userID, request: req, expires: now.Add(p.ttl)}
}

func (p *pendingAuth) take(state string) (string, domain.AuthorizationRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[state]
	if !ok || state == "" {
		return "", domain.AuthorizationRequest{}, false
	}
	delete(p.entries, state)
	if p.now().After(e.expires) {
		return "", domain.AuthorizationRequest{}, false
	}
	return e.userID, e.request, true
}

package revocation

import "sync"

// Registry records token strings invalidated before their natural expiry.
// Membership is exact string match: logout blacklists the two literal
// tokens presented with the request, not every token ever issued for the
// subject. Implementations must be safe for concurrent use.
type Registry interface {
	Revoke(token string)
	IsRevoked(token string) bool
}

// MemoryRegistry keeps revoked tokens for the life of the process. A
// store-backed implementation can replace it without touching callers.
type MemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tokens: make(map[string]struct{})}
}

func (r *MemoryRegistry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = struct{}{}
}

func (r *MemoryRegistry) IsRevoked(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[token]
	return ok
}

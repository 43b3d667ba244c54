package httpx

import (
	"context"

	"github.com/target/learnhub/internal/service"
)

// clientScopeKey is an unexported context key type to avoid collisions across packages.
type clientScopeKey struct{}

type clientScope struct {
	id    string
	store *service.SessionStore
}

// withClientScope returns a child context carrying the client's session store.
func withClientScope(ctx context.Context, clientID string, store *service.SessionStore) context.Context {
	if store == nil {
		return ctx
	}
	return context.WithValue(ctx, clientScopeKey{}, clientScope{id: clientID, store: store})
}

// StoreFromContext returns the session store bound to the request's client.
func StoreFromContext(ctx context.Context) (*service.SessionStore, bool) {
	sc, ok := ctx.Value(clientScopeKey{}).(clientScope)
	if !ok || sc.store == nil {
		return nil, false
	}
	return sc.store, true
}

// ClientIDFromContext returns the browser client id, or "" outside a client scope.
func ClientIDFromContext(ctx context.Context) string {
	sc, _ := ctx.Value(clientScopeKey{}).(clientScope)
	return sc.id
}

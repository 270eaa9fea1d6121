package gql

import (
	"context"

	"github.com/avolkov/docgraph/internal/authzcache"
	"github.com/avolkov/docgraph/internal/dataloader"
	"github.com/avolkov/docgraph/internal/dbservice"
	"github.com/avolkov/docgraph/internal/writequeue"
)

// Session is the optional authenticated-principal info attached to a
// request. A nil *Session means the request is anonymous.
type Session struct {
	Subject string
}

// RequestContext is constructed once per GraphQL request and threaded
// through resolvers via context.Context. It carries shared references
// (database, authorization cache) plus per-request state (DataLoaders,
// trace id, session).
type RequestContext struct {
	DB            dbservice.Service
	Queue         *writequeue.Queue
	Authz         *authzcache.Cache
	Notes         *dataloader.Loader[string, *Note]
	Subscriptions *SubscriptionBus
	TraceID       string
	Session       *Session
	IsDemoMode    bool
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx for resolver access.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext retrieves the RequestContext a resolver is running under.
// Panics if called outside a request built by this package, since that
// indicates a wiring bug rather than a recoverable runtime condition.
func FromContext(ctx context.Context) *RequestContext {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	if !ok {
		panic("gql: RequestContext missing from context")
	}
	return rc
}

// Subject returns the authenticated subject id, or "" for an anonymous
// request.
func (rc *RequestContext) Subject() string {
	if rc.Session == nil {
		return ""
	}
	return rc.Session.Subject
}

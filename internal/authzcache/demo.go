//go:build demo

package authzcache

import "context"

// StaticPrincipal is the subject id every request is treated as when
// running with the "demo" build tag — a local dev convenience that skips
// standing up a real identity provider. This file is excluded from any
// build that does not pass -tags demo, which release builds never do.
const StaticPrincipal = "demo-user"

// DemoAuthorizer always allows the static principal and denies everyone
// else, for exercising the cache and resolver wiring without a real
// authorization collaborator.
type DemoAuthorizer struct{}

func (DemoAuthorizer) Check(ctx context.Context, subject, resource, action string) (bool, error) {
	return subject == StaticPrincipal, nil
}

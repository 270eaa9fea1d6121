package gql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestContext_SubjectAnonymous(t *testing.T) {
	rc := &RequestContext{}
	assert.Equal(t, "", rc.Subject())
}

func TestRequestContext_SubjectAuthenticated(t *testing.T) {
	rc := &RequestContext{Session: &Session{Subject: "user-1"}}
	assert.Equal(t, "user-1", rc.Subject())
}

func TestWithRequestContext_RoundTrip(t *testing.T) {
	rc := &RequestContext{TraceID: "trace-1"}
	ctx := WithRequestContext(context.Background(), rc)
	got := FromContext(ctx)
	assert.Same(t, rc, got)
}

func TestFromContext_PanicsWithoutRequestContext(t *testing.T) {
	assert.Panics(t, func() {
		FromContext(context.Background())
	})
}

package ldapserver

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAsLDAPErrorPassesThroughLDAPError(t *testing.T) {
	src := NewError(ResultNoSuchObject, "gone")
	got := asLDAPError(src)
	assert.Same(t, src, got)
}

func TestAsLDAPErrorUnwrapsWrappedLDAPError(t *testing.T) {
	src := NewError(ResultInvalidCredentials, "nope")
	wrapped := pkgerrors.Wrap(src, "bind")
	got := asLDAPError(wrapped)
	assert.Equal(t, ResultInvalidCredentials, got.Code)
}

func TestAsLDAPErrorDefaultsToOperationsError(t *testing.T) {
	got := asLDAPError(errors.New("boom"))
	assert.Equal(t, ResultOperationsError, got.Code)
	assert.Equal(t, "boom", got.Message)
}

func TestIsAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.False(t, isAbandoned(ctx))
	cancel()
	assert.True(t, isAbandoned(ctx))
}

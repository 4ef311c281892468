package ldapserver

import (
	"context"
	goerrors "errors"

	"github.com/pkg/errors"
)

// LDAPError is a handler-raised condition carrying a specific LDAP
// result code, matched DN, and diagnostic message. A handler returns
// one of these (or wraps one with pkg/errors) to control exactly what
// the worker encodes; any other error becomes resultCode=operationsError
// with the error's message, per §4.4/§7.
type LDAPError struct {
	Code      ResultCode
	MatchedDN string
	Message   string
}

func (e *LDAPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "ldap error"
}

// NewError builds an *LDAPError with the given result code and message.
func NewError(code ResultCode, message string) *LDAPError {
	return &LDAPError{Code: code, Message: message}
}

// asLDAPError unwraps err (following pkg/errors causes) looking for an
// *LDAPError. If none is found, it synthesizes one with
// resultCode=operationsError, per §4.4/§7's HandlerError policy.
func asLDAPError(err error) *LDAPError {
	var target *LDAPError
	if goerrors.As(err, &target) {
		return target
	}
	return &LDAPError{
		Code:    ResultOperationsError,
		Message: errors.Cause(err).Error(),
	}
}

// isAbandoned reports whether ctx was cancelled — the AbandonSignal
// condition from §7: a worker observing this must return without
// emitting a PDU.
func isAbandoned(ctx context.Context) bool {
	return ctx.Err() != nil
}

// errAbandoned is returned by SearchResponseWriter.Send once the
// request's context has been cancelled (Abandon, Bind, or Unbind),
// so handlers that check the returned error stop producing entries
// without needing to poll ctx.Done() themselves.
var errAbandoned = context.Canceled

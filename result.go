package ldapserver

import "github.com/nvllz/ldapserver/wire"

// ResultCode is the numeric LDAPResult resultCode (RFC 4511 §4.1.9).
type ResultCode = wire.ResultCode

// Result codes the engine itself produces or special-cases. A handler
// may return any other code via *LDAPError and the worker will encode
// it verbatim — the core does not police or render the full taxonomy.
const (
	ResultSuccess                = wire.ResultSuccess
	ResultOperationsError        = wire.ResultOperationsError
	ResultProtocolError          = wire.ResultProtocolError
	ResultCompareFalse           = wire.ResultCompareFalse
	ResultCompareTrue            = wire.ResultCompareTrue
	ResultAuthMethodNotSupported = wire.ResultAuthMethodNotSupported
	ResultUnwillingToPerform     = wire.ResultUnwillingToPerform
	ResultNoSuchObject           = wire.ResultNoSuchObject
	ResultInvalidCredentials     = wire.ResultInvalidCredentials
)

// Control is a pass-through LDAP control: the core forwards these
// uninterpreted between client and handler.
type Control = wire.Control

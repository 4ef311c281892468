package wire

// ResultCode is the numeric LDAPResult resultCode, RFC 4511 §4.1.9 /
// Appendix A. The engine only needs the codes it can itself produce or
// must special-case; a handler is free to return any other code and
// the engine will encode it verbatim. Textual rendering of the result
// code space belongs to the handler/backend, not the core.
type ResultCode int64

const (
	ResultSuccess                ResultCode = 0
	ResultOperationsError        ResultCode = 1
	ResultProtocolError          ResultCode = 2
	ResultTimeLimitExceeded      ResultCode = 3
	ResultSizeLimitExceeded      ResultCode = 4
	ResultCompareFalse           ResultCode = 5
	ResultCompareTrue            ResultCode = 6
	ResultAuthMethodNotSupported ResultCode = 7
	ResultUnwillingToPerform     ResultCode = 53
	ResultNoSuchObject           ResultCode = 32
	ResultInvalidCredentials     ResultCode = 49
)

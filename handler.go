package ldapserver

import "context"

// SearchScope is the LDAP search scope, RFC 4511 §4.5.1.2.
type SearchScope int

const (
	ScopeBaseObject   SearchScope = 0
	ScopeSingleLevel  SearchScope = 1
	ScopeWholeSubtree SearchScope = 2
)

// DerefAliases controls alias dereferencing during a search, RFC 4511
// §4.5.1.3.
type DerefAliases int

const (
	DerefNever       DerefAliases = 0
	DerefInSearching DerefAliases = 1
	DerefFindingBase DerefAliases = 2
	DerefAlways      DerefAliases = 3
)

// ModOp is one change's operation within a ModifyRequest, RFC 4511
// §4.6.
type ModOp int

const (
	ModAdd     ModOp = 0
	ModDelete  ModOp = 1
	ModReplace ModOp = 2
)

// BindRequest is the decoded simple-bind envelope handed to
// Handler.Bind. SASL credentials, when present, are forwarded as the
// raw mechanism name and credential bytes; the core does not interpret
// SASL.
type BindRequest struct {
	Version         int
	Name            string
	Password        []byte
	SASLMechanism   string
	SASLCredentials []byte
	Controls        []Control
}

// BindResult is what a successful Handler.Bind returns: the
// distinguished name the connection is now bound as. The negotiated
// version is tracked by the connection itself from the request, not
// echoed back by the handler.
type BindResult struct {
	DN string
}

// SearchRequest is the decoded SearchRequest envelope.
type SearchRequest struct {
	BaseObject   string
	Scope        SearchScope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       string
	Attributes   []string
	Controls     []Control
}

// SearchEntry is one SearchResultEntry a handler emits through a
// SearchResponseWriter.
type SearchEntry struct {
	DN         string
	Attributes map[string][]string
}

// SearchResponseWriter lets Handler.Search stream entries before
// returning its final status. Send cooperatively checks the worker's
// cancellation token (Abandon, Bind, or Unbind racing this search) and
// returns errAbandoned instead of writing once it has fired — this is
// the "start of each search-entry production" check point §4.3/§5
// require.
type SearchResponseWriter interface {
	Send(ctx context.Context, entry SearchEntry) error
}

// ModifyRequest is the decoded ModifyRequest envelope.
type ModifyRequest struct {
	DN       string
	Changes  []Modification
	Controls []Control
}

// Modification is one change within a ModifyRequest.
type Modification struct {
	Operation ModOp
	Attribute string
	Values    []string
}

// AddRequest is the decoded AddRequest envelope.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
	Controls   []Control
}

// DeleteRequest is the decoded DelRequest envelope.
type DeleteRequest struct {
	DN       string
	Controls []Control
}

// ModifyDNRequest is the decoded ModifyDNRequest envelope.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
	Controls     []Control
}

// CompareRequest is the decoded CompareRequest envelope.
type CompareRequest struct {
	DN        string
	Attribute string
	Value     string
	Controls  []Control
}

// ExtendedRequest is the decoded ExtendedRequest envelope (APPLICATION
// 23): a request OID plus an opaque value. StartTLS is handled
// specially by the dispatch loop (it must run synchronously, like
// Bind); every other OID reaches Handler.Extended.
type ExtendedRequest struct {
	Name     string
	Value    []byte
	Controls []Control
}

// ExtendedResult is what Handler.Extended returns on success: an
// optional response OID and opaque value, RFC 4511 §4.12.
type ExtendedResult struct {
	Name  string
	Value []byte
}

// Handler is the pluggable behavior object the engine calls into for
// every operation (component G, the external boundary from §6). Unless
// Config.HandlerFactory is set, a single Handler instance is shared
// across every connection; either way one instance serves every
// concurrent worker on its connection — implementations must be safe
// for concurrent use.
//
// The context of every method except Bind is cancelled the instant the
// operation is abandoned, the connection re-binds, or the connection
// unbinds (Bind's context is never cancelled); a
// method that keeps running past that point is harmless (its response,
// if any, is simply discarded) but should check ctx and return
// promptly where it can.
//
// A non-nil error that is not an *LDAPError is reported to the client
// as resultCode=operationsError with the error's message; returning an
// *LDAPError (see NewError) lets a handler pick any other result code.
type Handler interface {
	Bind(ctx context.Context, req *BindRequest) (*BindResult, error)
	Search(ctx context.Context, w SearchResponseWriter, req *SearchRequest) error
	Modify(ctx context.Context, req *ModifyRequest) error
	Add(ctx context.Context, req *AddRequest) error
	Delete(ctx context.Context, req *DeleteRequest) error
	ModifyDN(ctx context.Context, req *ModifyDNRequest) error
	Compare(ctx context.Context, req *CompareRequest) (bool, error)
	Extended(ctx context.Context, req *ExtendedRequest) (*ExtendedResult, error)
}

// HandlerFactory builds a fresh Handler for a connection, mirroring
// the "new(connection, messageID, ...handler_args)" factory the
// contract in §6 describes. Most servers don't need per-connection
// handler state and can set Config.Handler directly instead;
// HandlerFactory is for the ones that do (e.g. a handler that closes over the bound
// DN for authorization decisions).
type HandlerFactory func(conn *Connection) Handler

package ldapserver

import (
	"context"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/nvllz/ldapserver/wire"
)

// worker is the operation worker (component D): given a single
// request's decoded envelope, it invokes the matching Handler method
// and translates whatever comes back into a terminal response PDU —
// or into no PDU at all, if the request was abandoned.
type worker struct {
	conn      *Connection
	messageID int
}

func (w *worker) run(ctx context.Context, env *wire.Envelope) {
	switch env.OpTag {
	case wire.TagSearchRequest:
		w.runSearch(ctx, env)
	case wire.TagModifyRequest:
		w.runModify(ctx, env)
	case wire.TagAddRequest:
		w.runAdd(ctx, env)
	case wire.TagDelRequest:
		w.runDelete(ctx, env)
	case wire.TagModifyDNRequest:
		w.runModifyDN(ctx, env)
	case wire.TagCompareRequest:
		w.runCompare(ctx, env)
	case wire.TagExtendedRequest:
		w.runExtended(ctx, env)
	default:
		// The dispatch loop only ever spawns a worker for the tags
		// above; reaching here is a programming error, not a client
		// error, so there is nothing useful to send back.
	}
}

// recoverHandlerPanic turns a handler panic into a HandlerError
// (§7): the worker still must emit exactly one terminal response,
// never crash the connection's goroutine.
func recoverHandlerPanic(errp *error) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("ldapserver: handler panic: %v", r)
	}
}

func (w *worker) emit(ctx context.Context, op *ber.Packet) {
	// Cooperative cancellation check point: a worker whose context was
	// cancelled (Abandon, Bind, or Unbind racing this request) must
	// emit no PDU at all, even if the handler itself ignored ctx and
	// ran to completion.
	if isAbandoned(ctx) {
		return
	}
	raw := wire.EncodeEnvelope(w.messageID, op)
	_ = w.conn.writer.writeFrame(raw)
}

func (w *worker) runModify(ctx context.Context, env *wire.Envelope) {
	req, err := decodeModifyRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeModifyResponse(ResultProtocolError, "", err.Error()))
		return
	}
	err = w.callModify(ctx, req)
	code, matchedDN, msg := resultOf(err)
	w.emit(ctx, encodeModifyResponse(code, matchedDN, msg))
}

func (w *worker) callModify(ctx context.Context, req *ModifyRequest) (err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Modify(ctx, req)
}

func (w *worker) runAdd(ctx context.Context, env *wire.Envelope) {
	req, err := decodeAddRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeAddResponse(ResultProtocolError, "", err.Error()))
		return
	}
	err = w.callAdd(ctx, req)
	code, matchedDN, msg := resultOf(err)
	w.emit(ctx, encodeAddResponse(code, matchedDN, msg))
}

func (w *worker) callAdd(ctx context.Context, req *AddRequest) (err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Add(ctx, req)
}

func (w *worker) runDelete(ctx context.Context, env *wire.Envelope) {
	req, err := decodeDeleteRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeDeleteResponse(ResultProtocolError, "", err.Error()))
		return
	}
	err = w.callDelete(ctx, req)
	code, matchedDN, msg := resultOf(err)
	w.emit(ctx, encodeDeleteResponse(code, matchedDN, msg))
}

func (w *worker) callDelete(ctx context.Context, req *DeleteRequest) (err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Delete(ctx, req)
}

func (w *worker) runModifyDN(ctx context.Context, env *wire.Envelope) {
	req, err := decodeModifyDNRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeModifyDNResponse(ResultProtocolError, "", err.Error()))
		return
	}
	err = w.callModifyDN(ctx, req)
	code, matchedDN, msg := resultOf(err)
	w.emit(ctx, encodeModifyDNResponse(code, matchedDN, msg))
}

func (w *worker) callModifyDN(ctx context.Context, req *ModifyDNRequest) (err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.ModifyDN(ctx, req)
}

func (w *worker) runCompare(ctx context.Context, env *wire.Envelope) {
	req, err := decodeCompareRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeCompareResponse(ResultProtocolError, "", err.Error()))
		return
	}
	result, err := w.callCompare(ctx, req)
	if err != nil {
		code, matchedDN, msg := resultOf(err)
		w.emit(ctx, encodeCompareResponse(code, matchedDN, msg))
		return
	}
	code := ResultCompareFalse
	if result {
		code = ResultCompareTrue
	}
	w.emit(ctx, encodeCompareResponse(code, "", ""))
}

func (w *worker) callCompare(ctx context.Context, req *CompareRequest) (result bool, err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Compare(ctx, req)
}

func (w *worker) runExtended(ctx context.Context, env *wire.Envelope) {
	req, err := decodeExtendedRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, wire.EncodeExtendedResponse(ResultProtocolError, "", err.Error(), "", nil))
		return
	}
	result, err := w.callExtended(ctx, req)
	if err != nil {
		code, matchedDN, msg := resultOf(err)
		w.emit(ctx, wire.EncodeExtendedResponse(code, matchedDN, msg, "", nil))
		return
	}
	var name string
	var value []byte
	if result != nil {
		name, value = result.Name, result.Value
	}
	w.emit(ctx, wire.EncodeExtendedResponse(ResultSuccess, "", "", name, value))
}

func (w *worker) callExtended(ctx context.Context, req *ExtendedRequest) (result *ExtendedResult, err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Extended(ctx, req)
}

// resultOf translates a handler error (or nil, for success) into the
// three fields every LDAPResult response carries.
func resultOf(err error) (code ResultCode, matchedDN, message string) {
	if err == nil {
		return ResultSuccess, "", ""
	}
	lerr := asLDAPError(err)
	return lerr.Code, lerr.MatchedDN, lerr.Message
}

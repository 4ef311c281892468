package ldapserver

import (
	"context"
	"io"

	"github.com/nvllz/ldapserver/wire"
)

// searchResponseWriter streams SearchResultEntry PDUs for one Search
// worker. It is only ever constructed inside the withWriteLock run in
// runSearch, so every Send writes onto a stream already held by this
// worker's own write lock: entries and the terminal SearchResultDone
// form one uninterrupted run of whole PDUs that no other worker's
// response can interleave with, not just individually atomic frames.
type searchResponseWriter struct {
	bw        io.Writer
	flush     func() error
	messageID int
}

func (s *searchResponseWriter) Send(ctx context.Context, entry SearchEntry) error {
	if isAbandoned(ctx) {
		return errAbandoned
	}
	op := encodeSearchResultEntry(entry)
	raw := wire.EncodeEnvelope(s.messageID, op)
	if _, err := s.bw.Write(raw); err != nil {
		return err
	}
	return s.flush()
}

func (w *worker) runSearch(ctx context.Context, env *wire.Envelope) {
	req, err := decodeSearchRequest(env.Op, env.Controls)
	if err != nil {
		w.emit(ctx, encodeSearchResultDone(ResultProtocolError, "", err.Error()))
		return
	}

	_ = w.conn.writer.withWriteLock(func(bw io.Writer) error {
		sw := &searchResponseWriter{bw: bw, flush: w.conn.writer.flushLocked, messageID: w.messageID}
		err := w.callSearch(ctx, sw, req)
		if isAbandoned(ctx) {
			// Cancelled mid-search (Abandon, Bind, or Unbind): emit
			// nothing at all, per §4.11 — not even SearchResultDone.
			return nil
		}
		code, matchedDN, msg := resultOf(err)
		op := encodeSearchResultDone(code, matchedDN, msg)
		raw := wire.EncodeEnvelope(w.messageID, op)
		if _, err := bw.Write(raw); err != nil {
			return err
		}
		return w.conn.writer.flushLocked()
	})
}

func (w *worker) callSearch(ctx context.Context, sw SearchResponseWriter, req *SearchRequest) (err error) {
	defer recoverHandlerPanic(&err)
	return w.conn.handler.Search(ctx, sw, req)
}

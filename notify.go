package ldapserver

import "github.com/nvllz/ldapserver/wire"

// sendNotice emits an unsolicited notification: messageID 0, an
// ExtendedResponse-shaped PDU carrying resultCode, matchedDN="", and
// the given diagnostic message, with responseName set to
// NoticeOfDisconnection. It is sent via writeFrame so it cannot split
// another PDU, and it is best-effort — per §7, if the send itself
// fails the connection is simply dropped.
func (c *Connection) sendNotice(code ResultCode, diagnosticMessage string) {
	op := wire.EncodeExtendedResponse(code, "", diagnosticMessage, wire.NoticeOfDisconnection, nil)
	raw := wire.EncodeEnvelope(0, op)
	_ = c.writer.writeFrame(raw)
}

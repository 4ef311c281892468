package wire

import (
	"bytes"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Application tag numbers for LDAPMessage protocolOp, per RFC 4511 §4.
const (
	TagBindRequest           = 0
	TagBindResponse          = 1
	TagUnbindRequest         = 2
	TagSearchRequest         = 3
	TagSearchResultEntry     = 4
	TagSearchResultDone      = 5
	TagModifyRequest         = 6
	TagModifyResponse        = 7
	TagAddRequest            = 8
	TagAddResponse           = 9
	TagDelRequest            = 10
	TagDelResponse           = 11
	TagModifyDNRequest       = 12
	TagModifyDNResponse      = 13
	TagCompareRequest        = 14
	TagCompareResponse       = 15
	TagAbandonRequest        = 16
	TagSearchResultReference = 19
	TagExtendedRequest       = 23
	TagExtendedResponse      = 24

	// TagControls is the envelope-level APPLICATION(no)/CONTEXT tag 0
	// SEQUENCE OF Control, distinguished from protocolOp by sitting
	// outside the protocolOp's own tag space at the envelope level.
	TagControls = 0
)

// NoticeOfDisconnection is the responseName RFC 4511 §4.4.1 mandates
// on a server-initiated unsolicited notification that precedes
// closing the transport.
const NoticeOfDisconnection = "1.3.6.1.4.1.1466.20036"

// NoticeOfStartTLS is the requestName/responseName for the StartTLS
// extended operation (RFC 4511 §4.14).
const NoticeOfStartTLS = "1.3.6.1.4.1.1466.20037"

// Envelope is a decoded LDAPMessage: the message ID, the raw
// protocolOp element (still a *ber.Packet, undecoded into its
// operation-specific shape), and any controls.
type Envelope struct {
	MessageID int
	OpTag     ber.Tag
	Op        *ber.Packet
	Controls  []Control
}

// Control is a pass-through LDAP control: criticality, OID, and an
// opaque value. The engine never interprets it.
type Control struct {
	OID      string
	Critical bool
	Value    []byte
}

// DecodeEnvelope parses one raw BER element (as returned by
// ReadElement) into an Envelope, validating the shape RFC 4511 §4.1.1
// requires: SEQUENCE of (INTEGER messageID, APPLICATION-tagged
// protocolOp, optional [0] SEQUENCE OF Control).
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	pkt := ber.DecodePacket(raw)
	if pkt == nil {
		return nil, fmt.Errorf("wire: could not decode BER element")
	}
	if pkt.ClassType != ber.ClassUniversal || pkt.Tag != ber.TagSequence || len(pkt.Children) < 2 {
		return nil, fmt.Errorf("wire: envelope is not a SEQUENCE of at least 2 elements")
	}

	idPkt := pkt.Children[0]
	if idPkt.ClassType != ber.ClassUniversal || idPkt.Tag != ber.TagInteger {
		return nil, fmt.Errorf("wire: messageID is not an INTEGER")
	}
	messageID, ok := idPkt.Value.(int64)
	if !ok {
		return nil, fmt.Errorf("wire: messageID value is not an integer")
	}
	if messageID < 0 || messageID > 1<<31-1 {
		return nil, fmt.Errorf("wire: messageID %d out of range", messageID)
	}
	if messageID == 0 {
		return nil, fmt.Errorf("wire: messageID 0 is reserved for unsolicited notifications")
	}

	opPkt := pkt.Children[1]
	if opPkt.ClassType != ber.ClassApplication {
		return nil, fmt.Errorf("wire: protocolOp is not APPLICATION-tagged")
	}

	env := &Envelope{
		MessageID: int(messageID),
		OpTag:     opPkt.Tag,
		Op:        opPkt,
	}

	if len(pkt.Children) > 2 {
		ctrlPkt := pkt.Children[2]
		if ctrlPkt.ClassType != ber.ClassContext || ctrlPkt.Tag != TagControls {
			return nil, fmt.Errorf("wire: trailing envelope element is not a [0] controls sequence")
		}
		for _, c := range ctrlPkt.Children {
			ctrl, err := decodeControl(c)
			if err != nil {
				return nil, err
			}
			env.Controls = append(env.Controls, ctrl)
		}
	}

	return env, nil
}

func decodeControl(pkt *ber.Packet) (Control, error) {
	if len(pkt.Children) < 1 {
		return Control{}, fmt.Errorf("wire: control missing OID")
	}
	oid, ok := pkt.Children[0].Value.(string)
	if !ok {
		return Control{}, fmt.Errorf("wire: control OID is not an OCTET STRING")
	}
	ctrl := Control{OID: oid}

	idx := 1
	if idx < len(pkt.Children) && pkt.Children[idx].Tag == ber.TagBoolean {
		b, ok := pkt.Children[idx].Value.(bool)
		if !ok {
			return Control{}, fmt.Errorf("wire: control criticality is not a BOOLEAN")
		}
		ctrl.Critical = b
		idx++
	}
	if idx < len(pkt.Children) {
		ctrl.Value = pkt.Children[idx].Data.Bytes()
	}
	return ctrl, nil
}

// EncodeEnvelope serializes a response LDAPMessage: messageID and a
// caller-built protocolOp packet. It never adds an envelope-level
// controls element, so responses from this engine carry no controls.
func EncodeEnvelope(messageID int, op *ber.Packet) []byte {
	envelope := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	envelope.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(messageID), "messageID"))
	envelope.AppendChild(op)
	return envelope.Bytes()
}

// EncodeResult builds the common LDAPResult SEQUENCE { resultCode
// ENUMERATED, matchedDN LDAPDN, diagnosticMessage LDAPString } shared
// by every terminal response (BindResponse, SearchResultDone and
// ExtendedResponse included), and appends it as
// children of the supplied op packet (already APPLICATION-tagged by
// the caller).
func EncodeResult(op *ber.Packet, code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(code), "resultCode"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, matchedDN, "matchedDN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diagnosticMessage, "diagnosticMessage"))
	return op
}

// NewApplicationOp starts a new constructed APPLICATION-tagged packet,
// the shape every protocolOp (request or response) uses at its
// outermost level.
func NewApplicationOp(tag ber.Tag, description string) *ber.Packet {
	return ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, description)
}

// EncodeExtendedResponse builds an ExtendedResponse (APPLICATION 24):
// the LDAPResult fields plus optional responseName ([10]) and
// responseValue ([11]), per RFC 4511 §4.12.
func EncodeExtendedResponse(code ResultCode, matchedDN, diagnosticMessage, responseName string, responseValue []byte) *ber.Packet {
	op := NewApplicationOp(TagExtendedResponse, "ExtendedResponse")
	EncodeResult(op, code, matchedDN, diagnosticMessage)
	if responseName != "" {
		op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 10, responseName, "responseName"))
	}
	if responseValue != nil {
		v := ber.Encode(ber.ClassContext, ber.TypePrimitive, 11, nil, "responseValue")
		v.Value = responseValue
		v.Data = bytes.NewBuffer(responseValue)
		op.AppendChild(v)
	}
	return op
}

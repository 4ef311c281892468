package ldapserver

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/nvllz/ldapserver/wire"
)

// decodeInt parses a BER two's-complement INTEGER body, for the
// handful of APPLICATION-tagged primitives (AbandonRequest, DelRequest
// is an OCTET STRING not an INTEGER) whose class keeps asn1-ber's
// generic decoder from typing Value itself.
func decodeInt(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("ldapserver: empty INTEGER body")
	}
	var v int64
	if data[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range data {
		v = v<<8 | int64(b)
	}
	return v, nil
}

func decodeBindRequest(op *ber.Packet, controls []Control) (*BindRequest, error) {
	if len(op.Children) < 3 {
		return nil, fmt.Errorf("ldapserver: malformed BindRequest")
	}
	version, ok := op.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("ldapserver: BindRequest version is not an INTEGER")
	}
	name, ok := op.Children[1].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: BindRequest name is not an OCTET STRING")
	}

	req := &BindRequest{Version: int(version), Name: name, Controls: controls}

	auth := op.Children[2]
	switch auth.Tag {
	case 0: // simple
		req.Password = auth.Data.Bytes()
	case 3: // sasl
		if len(auth.Children) < 1 {
			return nil, fmt.Errorf("ldapserver: malformed SaslCredentials")
		}
		mech, ok := auth.Children[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("ldapserver: sasl mechanism is not an OCTET STRING")
		}
		req.SASLMechanism = mech
		if len(auth.Children) > 1 {
			req.SASLCredentials = auth.Children[1].Data.Bytes()
		}
	default:
		return nil, fmt.Errorf("ldapserver: unknown BindRequest authentication choice tag %d", auth.Tag)
	}

	return req, nil
}

func encodeBindResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagBindResponse, "BindResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeSearchRequest(op *ber.Packet, controls []Control) (*SearchRequest, error) {
	if len(op.Children) < 7 {
		return nil, fmt.Errorf("ldapserver: malformed SearchRequest")
	}
	base, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest baseObject is not an OCTET STRING")
	}
	scope, ok := op.Children[1].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest scope is not an ENUMERATED")
	}
	deref, ok := op.Children[2].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest derefAliases is not an ENUMERATED")
	}
	sizeLimit, ok := op.Children[3].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest sizeLimit is not an INTEGER")
	}
	timeLimit, ok := op.Children[4].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest timeLimit is not an INTEGER")
	}
	typesOnly, ok := op.Children[5].Value.(bool)
	if !ok {
		return nil, fmt.Errorf("ldapserver: SearchRequest typesOnly is not a BOOLEAN")
	}

	filter, err := renderFilter(op.Children[6])
	if err != nil {
		return nil, err
	}

	var attrs []string
	if len(op.Children) > 7 {
		for _, a := range op.Children[7].Children {
			s, ok := a.Value.(string)
			if !ok {
				return nil, fmt.Errorf("ldapserver: SearchRequest attribute is not an OCTET STRING")
			}
			attrs = append(attrs, s)
		}
	}

	return &SearchRequest{
		BaseObject:   base,
		Scope:        SearchScope(scope),
		DerefAliases: DerefAliases(deref),
		SizeLimit:    int(sizeLimit),
		TimeLimit:    int(timeLimit),
		TypesOnly:    typesOnly,
		Filter:       filter,
		Attributes:   attrs,
		Controls:     controls,
	}, nil
}

func encodeSearchResultEntry(entry SearchEntry) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagSearchResultEntry, "SearchResultEntry")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, entry.DN, "objectName"))

	attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for name, values := range entry.Attributes {
		partial := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "partialAttribute")
		partial.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "type"))
		vals := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range values {
			vals.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "value"))
		}
		partial.AppendChild(vals)
		attrs.AppendChild(partial)
	}
	op.AppendChild(attrs)
	return op
}

func encodeSearchResultDone(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagSearchResultDone, "SearchResultDone")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeAttributeList(seq *ber.Packet) (map[string][]string, error) {
	attrs := make(map[string][]string)
	for _, attr := range seq.Children {
		if len(attr.Children) < 2 {
			return nil, fmt.Errorf("ldapserver: malformed attribute")
		}
		name, ok := attr.Children[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("ldapserver: attribute type is not an OCTET STRING")
		}
		var values []string
		for _, v := range attr.Children[1].Children {
			s, ok := v.Value.(string)
			if !ok {
				return nil, fmt.Errorf("ldapserver: attribute value is not an OCTET STRING")
			}
			values = append(values, s)
		}
		attrs[name] = values
	}
	return attrs, nil
}

func decodeModifyRequest(op *ber.Packet, controls []Control) (*ModifyRequest, error) {
	if len(op.Children) < 2 {
		return nil, fmt.Errorf("ldapserver: malformed ModifyRequest")
	}
	dn, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: ModifyRequest object is not an OCTET STRING")
	}

	var changes []Modification
	for _, c := range op.Children[1].Children {
		if len(c.Children) < 2 {
			return nil, fmt.Errorf("ldapserver: malformed change")
		}
		opCode, ok := c.Children[0].Value.(int64)
		if !ok {
			return nil, fmt.Errorf("ldapserver: change operation is not an ENUMERATED")
		}
		attr := c.Children[1]
		if len(attr.Children) < 2 {
			return nil, fmt.Errorf("ldapserver: malformed modification")
		}
		name, ok := attr.Children[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("ldapserver: modification type is not an OCTET STRING")
		}
		var values []string
		for _, v := range attr.Children[1].Children {
			s, ok := v.Value.(string)
			if !ok {
				return nil, fmt.Errorf("ldapserver: modification value is not an OCTET STRING")
			}
			values = append(values, s)
		}
		changes = append(changes, Modification{Operation: ModOp(opCode), Attribute: name, Values: values})
	}

	return &ModifyRequest{DN: dn, Changes: changes, Controls: controls}, nil
}

func encodeModifyResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagModifyResponse, "ModifyResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeAddRequest(op *ber.Packet, controls []Control) (*AddRequest, error) {
	if len(op.Children) < 2 {
		return nil, fmt.Errorf("ldapserver: malformed AddRequest")
	}
	dn, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: AddRequest entry is not an OCTET STRING")
	}
	attrs, err := decodeAttributeList(op.Children[1])
	if err != nil {
		return nil, err
	}
	return &AddRequest{DN: dn, Attributes: attrs, Controls: controls}, nil
}

func encodeAddResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagAddResponse, "AddResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeDeleteRequest(op *ber.Packet, controls []Control) (*DeleteRequest, error) {
	// DelRequest ::= [APPLICATION 10] LDAPDN — a primitive OCTET
	// STRING, not a SEQUENCE, so the DN is the element's raw content.
	return &DeleteRequest{DN: string(op.Data.Bytes()), Controls: controls}, nil
}

func encodeDeleteResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagDelResponse, "DelResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeModifyDNRequest(op *ber.Packet, controls []Control) (*ModifyDNRequest, error) {
	if len(op.Children) < 3 {
		return nil, fmt.Errorf("ldapserver: malformed ModifyDNRequest")
	}
	dn, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: ModifyDNRequest entry is not an OCTET STRING")
	}
	newRDN, ok := op.Children[1].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: ModifyDNRequest newrdn is not an OCTET STRING")
	}
	deleteOld, ok := op.Children[2].Value.(bool)
	if !ok {
		return nil, fmt.Errorf("ldapserver: ModifyDNRequest deleteoldrdn is not a BOOLEAN")
	}
	req := &ModifyDNRequest{DN: dn, NewRDN: newRDN, DeleteOldRDN: deleteOld, Controls: controls}
	if len(op.Children) > 3 {
		req.NewSuperior = string(op.Children[3].Data.Bytes())
	}
	return req, nil
}

func encodeModifyDNResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagModifyDNResponse, "ModifyDNResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeCompareRequest(op *ber.Packet, controls []Control) (*CompareRequest, error) {
	if len(op.Children) < 2 {
		return nil, fmt.Errorf("ldapserver: malformed CompareRequest")
	}
	dn, ok := op.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: CompareRequest entry is not an OCTET STRING")
	}
	ava := op.Children[1]
	if len(ava.Children) < 2 {
		return nil, fmt.Errorf("ldapserver: malformed AttributeValueAssertion")
	}
	attr, ok := ava.Children[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("ldapserver: CompareRequest attributeDesc is not an OCTET STRING")
	}
	value := string(ava.Children[1].Data.Bytes())
	return &CompareRequest{DN: dn, Attribute: attr, Value: value, Controls: controls}, nil
}

func encodeCompareResponse(code ResultCode, matchedDN, diagnosticMessage string) *ber.Packet {
	op := wire.NewApplicationOp(wire.TagCompareResponse, "CompareResponse")
	return wire.EncodeResult(op, code, matchedDN, diagnosticMessage)
}

func decodeAbandonRequest(op *ber.Packet) (int, error) {
	v, err := decodeInt(op.Data.Bytes())
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func decodeExtendedRequest(op *ber.Packet, controls []Control) (*ExtendedRequest, error) {
	if len(op.Children) < 1 {
		return nil, fmt.Errorf("ldapserver: malformed ExtendedRequest")
	}
	// requestName is a context-specific [0] primitive, which asn1-ber
	// leaves untyped, so the OID is the element's raw content.
	name := string(op.Children[0].Data.Bytes())
	req := &ExtendedRequest{Name: name, Controls: controls}
	if len(op.Children) > 1 {
		req.Value = op.Children[1].Data.Bytes()
	}
	return req, nil
}

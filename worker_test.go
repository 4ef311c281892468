package ldapserver

import (
	"bytes"
	"context"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"

	"github.com/nvllz/ldapserver/wire"
)

func addRequestOp(dn string, attrs map[string][]string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ber.Tag(wire.TagAddRequest), nil, "AddRequest")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "entry"))
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for name, values := range attrs {
		partial := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attribute")
		partial.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "type"))
		set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range values {
			set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "value"))
		}
		partial.AppendChild(set)
		seq.AppendChild(partial)
	}
	op.AppendChild(seq)
	return op
}

func deleteRequestOp(dn string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, ber.Tag(wire.TagDelRequest), nil, "DelRequest")
	op.Data = bytes.NewBufferString(dn)
	return op
}

func modifyDNRequestOp(dn, newRDN string, deleteOld bool, newSuperior string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ber.Tag(wire.TagModifyDNRequest), nil, "ModifyDNRequest")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "entry"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, newRDN, "newrdn"))
	op.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, deleteOld, "deleteoldrdn"))
	if newSuperior != "" {
		sup := ber.Encode(ber.ClassContext, ber.TypePrimitive, 0, nil, "newSuperior")
		sup.Data = bytes.NewBufferString(newSuperior)
		op.AppendChild(sup)
	}
	return op
}

func extendedRequestOp(name string, value []byte) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ber.Tag(wire.TagExtendedRequest), nil, "ExtendedRequest")
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, name, "requestName"))
	if value != nil {
		v := ber.Encode(ber.ClassContext, ber.TypePrimitive, 1, nil, "requestValue")
		v.Data = bytes.NewBuffer(value)
		op.AppendChild(v)
	}
	return op
}

func TestWorkerAddSuccess(t *testing.T) {
	h := &stubHandler{add: func(ctx context.Context, req *AddRequest) error {
		assert.Equal(t, "cn=new,dc=example,dc=org", req.DN)
		assert.Equal(t, []string{"top"}, req.Attributes["objectClass"])
		return nil
	}}
	th := newTestHarness(t, h)
	th.send(1, addRequestOp("cn=new,dc=example,dc=org", map[string][]string{"objectClass": {"top"}}))
	env := th.recv()
	assert.Equal(t, ber.Tag(wire.TagAddResponse), env.OpTag)
	assert.Equal(t, int64(ResultSuccess), env.Op.Children[0].Value.(int64))
}

func TestWorkerDeleteNoSuchObject(t *testing.T) {
	h := &stubHandler{del: func(ctx context.Context, req *DeleteRequest) error {
		return NewError(ResultNoSuchObject, "gone")
	}}
	th := newTestHarness(t, h)
	th.send(1, deleteRequestOp("cn=gone,dc=example,dc=org"))
	env := th.recv()
	assert.Equal(t, ber.Tag(wire.TagDelResponse), env.OpTag)
	assert.Equal(t, int64(ResultNoSuchObject), env.Op.Children[0].Value.(int64))
}

func TestWorkerModifyDN(t *testing.T) {
	h := &stubHandler{modDN: func(ctx context.Context, req *ModifyDNRequest) error {
		assert.Equal(t, "cn=old,dc=example,dc=org", req.DN)
		assert.Equal(t, "cn=new", req.NewRDN)
		assert.True(t, req.DeleteOldRDN)
		assert.Equal(t, "dc=other,dc=org", req.NewSuperior)
		return nil
	}}
	th := newTestHarness(t, h)
	th.send(1, modifyDNRequestOp("cn=old,dc=example,dc=org", "cn=new", true, "dc=other,dc=org"))
	env := th.recv()
	assert.Equal(t, ber.Tag(wire.TagModifyDNResponse), env.OpTag)
	assert.Equal(t, int64(ResultSuccess), env.Op.Children[0].Value.(int64))
}

func TestWorkerExtendedUnknownOID(t *testing.T) {
	th := newTestHarness(t, &stubHandler{})
	th.send(1, extendedRequestOp("1.2.3.4.5", nil))
	env := th.recv()
	assert.Equal(t, ber.Tag(wire.TagExtendedResponse), env.OpTag)
	assert.Equal(t, int64(ResultUnwillingToPerform), env.Op.Children[0].Value.(int64))
}

func TestWorkerHandlerPanicBecomesOperationsError(t *testing.T) {
	h := &stubHandler{compare: func(ctx context.Context, req *CompareRequest) (bool, error) {
		panic("boom")
	}}
	th := newTestHarness(t, h)
	th.send(1, compareRequestOp("cn=a", "attr", "v"))
	env := th.recv()
	assert.Equal(t, int64(ResultOperationsError), env.Op.Children[0].Value.(int64))
}

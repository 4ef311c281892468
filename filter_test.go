package ldapserver

import (
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func avaFilter(tag ber.Tag, attr, value string) *ber.Packet {
	pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, tag, nil, "ava")
	pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "attributeDesc"))
	pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, value, "assertionValue"))
	return pkt
}

func TestRenderFilterEquality(t *testing.T) {
	s, err := renderFilter(avaFilter(filterEqualityMatch, "cn", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "(cn=alice)", s)
}

func TestRenderFilterAndOr(t *testing.T) {
	and := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterAnd, nil, "and")
	and.AppendChild(avaFilter(filterEqualityMatch, "cn", "alice"))
	and.AppendChild(avaFilter(filterGreaterOrEqual, "age", "21"))
	s, err := renderFilter(and)
	require.NoError(t, err)
	assert.Equal(t, "(&(cn=alice)(age>=21))", s)
}

func TestRenderFilterNot(t *testing.T) {
	not := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterNot, nil, "not")
	not.AppendChild(avaFilter(filterEqualityMatch, "cn", "alice"))
	s, err := renderFilter(not)
	require.NoError(t, err)
	assert.Equal(t, "(!(cn=alice))", s)
}

func TestRenderFilterPresent(t *testing.T) {
	present := ber.NewString(ber.ClassContext, ber.TypePrimitive, filterPresent, "objectClass", "present")
	s, err := renderFilter(present)
	require.NoError(t, err)
	assert.Equal(t, "(objectClass=*)", s)
}

func TestRenderFilterEscapesSpecialCharacters(t *testing.T) {
	s, err := renderFilter(avaFilter(filterEqualityMatch, "cn", "a(b)*c\\d"))
	require.NoError(t, err)
	assert.Equal(t, `(cn=a\28b\29\2ac\5cd)`, s)
}

func TestRenderFilterSubstrings(t *testing.T) {
	sub := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterSubstrings, nil, "substrings")
	sub.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "cn", "type"))
	values := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "substrings")
	values.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, substrInitial, "al", "initial"))
	values.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, substrAny, "c", "any"))
	values.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, substrFinal, "e", "final"))
	sub.AppendChild(values)

	s, err := renderFilter(sub)
	require.NoError(t, err)
	assert.Equal(t, "(cn=al*c*e)", s)
}

func TestRenderFilterUnknownChoiceErrors(t *testing.T) {
	bogus := ber.Encode(ber.ClassContext, ber.TypeConstructed, 99, nil, "bogus")
	_, err := renderFilter(bogus)
	assert.Error(t, err)
}

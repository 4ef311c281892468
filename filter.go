package ldapserver

import (
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Filter CHOICE tags, RFC 4511 §4.5.1.7.
const (
	filterAnd             = 0
	filterOr              = 1
	filterNot             = 2
	filterEqualityMatch   = 3
	filterSubstrings      = 4
	filterGreaterOrEqual  = 5
	filterLessOrEqual     = 6
	filterPresent         = 7
	filterApproxMatch     = 8
	filterExtensibleMatch = 9
)

// Substrings CHOICE tags within a SubstringFilter, RFC 4511 §4.5.1.7.
const (
	substrInitial = 0
	substrAny     = 1
	substrFinal   = 2
)

// renderFilter turns a decoded Filter element into its RFC 4515 string
// representation. The core never evaluates filters — it only hands the
// string form to Handler.Search — so rendering, not interpreting, is
// all that lives here; a backend that wants a filter AST builds its
// own from this string.
func renderFilter(pkt *ber.Packet) (string, error) {
	var b strings.Builder
	if err := writeFilter(&b, pkt); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeFilter(b *strings.Builder, pkt *ber.Packet) error {
	switch pkt.Tag {
	case filterAnd:
		b.WriteString("(&")
		for _, c := range pkt.Children {
			if err := writeFilter(b, c); err != nil {
				return err
			}
		}
		b.WriteString(")")
	case filterOr:
		b.WriteString("(|")
		for _, c := range pkt.Children {
			if err := writeFilter(b, c); err != nil {
				return err
			}
		}
		b.WriteString(")")
	case filterNot:
		if len(pkt.Children) < 1 {
			return fmt.Errorf("ldapserver: malformed not-filter")
		}
		b.WriteString("(!")
		if err := writeFilter(b, pkt.Children[0]); err != nil {
			return err
		}
		b.WriteString(")")
	case filterEqualityMatch:
		return writeAVAFilter(b, pkt, "=")
	case filterGreaterOrEqual:
		return writeAVAFilter(b, pkt, ">=")
	case filterLessOrEqual:
		return writeAVAFilter(b, pkt, "<=")
	case filterApproxMatch:
		return writeAVAFilter(b, pkt, "~=")
	case filterPresent:
		attr, ok := pkt.Value.(string)
		if !ok {
			attr = string(pkt.Data.Bytes())
		}
		fmt.Fprintf(b, "(%s=*)", escapeFilterValue(attr))
	case filterSubstrings:
		return writeSubstringsFilter(b, pkt)
	case filterExtensibleMatch:
		b.WriteString("(?extensibleMatch?)")
	default:
		return fmt.Errorf("ldapserver: unknown filter choice tag %d", pkt.Tag)
	}
	return nil
}

func writeAVAFilter(b *strings.Builder, pkt *ber.Packet, op string) error {
	if len(pkt.Children) < 2 {
		return fmt.Errorf("ldapserver: malformed filter assertion")
	}
	attr, ok := pkt.Children[0].Value.(string)
	if !ok {
		return fmt.Errorf("ldapserver: filter attributeDesc is not an OCTET STRING")
	}
	value := string(pkt.Children[1].Data.Bytes())
	fmt.Fprintf(b, "(%s%s%s)", escapeFilterValue(attr), op, escapeFilterValue(value))
	return nil
}

func writeSubstringsFilter(b *strings.Builder, pkt *ber.Packet) error {
	if len(pkt.Children) < 2 {
		return fmt.Errorf("ldapserver: malformed substrings filter")
	}
	attr, ok := pkt.Children[0].Value.(string)
	if !ok {
		return fmt.Errorf("ldapserver: substrings attributeDesc is not an OCTET STRING")
	}

	var initial, final string
	var any []string
	for _, s := range pkt.Children[1].Children {
		v := string(s.Data.Bytes())
		switch s.Tag {
		case substrInitial:
			initial = v
		case substrAny:
			any = append(any, v)
		case substrFinal:
			final = v
		}
	}

	b.WriteString("(")
	b.WriteString(escapeFilterValue(attr))
	b.WriteString("=")
	b.WriteString(escapeFilterValue(initial))
	b.WriteString("*")
	for _, a := range any {
		b.WriteString(escapeFilterValue(a))
		b.WriteString("*")
	}
	b.WriteString(escapeFilterValue(final))
	b.WriteString(")")
	return nil
}

// escapeFilterValue applies the RFC 4515 §3 escaping rules for the
// characters that are special in a filter string.
func escapeFilterValue(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\5c`,
		`*`, `\2a`,
		`(`, `\28`,
		`)`, `\29`,
		"\x00", `\00`,
	)
	return replacer.Replace(s)
}

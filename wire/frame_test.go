package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadElementShortForm(t *testing.T) {
	// INTEGER 5, short length.
	raw := []byte{0x02, 0x01, 0x05}
	r := bufio.NewReader(bytes.NewReader(raw))
	elem, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, raw, elem)
}

func TestReadElementLongFormLength(t *testing.T) {
	content := bytes.Repeat([]byte{0xAA}, 200)
	raw := append([]byte{0x04, 0x81, 0xC8}, content...)
	r := bufio.NewReader(bytes.NewReader(raw))
	elem, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, raw, elem)
}

func TestReadElementLongFormTag(t *testing.T) {
	// 0b11111 low tag bits, tag number 31 encoded in one continuation
	// byte (top bit clear => last byte).
	raw := []byte{0x1F, 0x1F, 0x00}
	r := bufio.NewReader(bytes.NewReader(raw))
	elem, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, raw, elem)
}

func TestReadElementMultiByteLongFormTag(t *testing.T) {
	// Tag number requiring two continuation bytes: 0x85 (continue), 0x02 (last).
	raw := []byte{0x1F, 0x85, 0x02, 0x00}
	r := bufio.NewReader(bytes.NewReader(raw))
	elem, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, raw, elem)
}

func TestReadElementIndefiniteLengthRejected(t *testing.T) {
	raw := []byte{0x30, 0x80, 0x02, 0x01, 0x00, 0x00, 0x00}
	r := bufio.NewReader(bytes.NewReader(raw))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, ErrIndefiniteLength)
}

func TestReadElementCleanEOFAtBoundary(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadElementShortReadMidTag(t *testing.T) {
	raw := []byte{0x1F, 0x85}
	r := bufio.NewReader(bytes.NewReader(raw))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadElementShortReadMidLength(t *testing.T) {
	raw := []byte{0x04, 0x82, 0x01}
	r := bufio.NewReader(bytes.NewReader(raw))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadElementShortReadMidContent(t *testing.T) {
	raw := []byte{0x04, 0x05, 0x01, 0x02}
	r := bufio.NewReader(bytes.NewReader(raw))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadElementLengthLongerThanStreamDelivers(t *testing.T) {
	raw := []byte{0x04, 0x7F, 0x01, 0x02, 0x03}
	r := bufio.NewReader(bytes.NewReader(raw))
	_, err := ReadElement(r)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadElementZeroLengthContent(t *testing.T) {
	raw := []byte{0x05, 0x00} // NULL
	r := bufio.NewReader(bytes.NewReader(raw))
	elem, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, raw, elem)
}

func TestReadElementSequenceOfTwoBoundary(t *testing.T) {
	// Two full elements back to back; reading twice yields each in
	// turn and then a clean EOF — this is the property the dispatch
	// loop leans on to tell "more work" from "done".
	one := []byte{0x02, 0x01, 0x01}
	two := []byte{0x02, 0x01, 0x02}
	r := bufio.NewReader(bytes.NewReader(append(append([]byte{}, one...), two...)))

	e1, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, one, e1)

	e2, err := ReadElement(r)
	require.NoError(t, err)
	assert.Equal(t, two, e2)

	_, err = ReadElement(r)
	assert.ErrorIs(t, err, io.EOF)
}

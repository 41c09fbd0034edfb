package cache

import (
	"strconv"
	"strings"
)

// Codec variants for counter values stored remotely.
const (
	CodecDecimal Codec = iota
	CodecBinary
)

var codecNames = map[Codec]string{
	CodecBinary:  "binary",
	CodecDecimal: "decimal",
}

// Codec determines how integer values are represented in the remote store.
// Writer and reader of a key space have to agree on the same Codec.
type Codec uint8

// CodecByName returns the Codec registered under name.
func CodecByName(name string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}

	return 0, wrapError(ErrInvalidCodec, "unknown codec '%s'", name)
}

func (c Codec) String() string {
	if n, ok := codecNames[c]; ok {
		return n
	}

	return "unknown"
}

// Native indicates if the store can do arithmetic on values in this
// representation directly.
func (c Codec) Native() bool {
	return c == CodecDecimal
}

// Encode returns the representation of v.
func (c Codec) Encode(v int64) []byte {
	switch c {
	case CodecBinary:
		return encodeBinary(v)
	default:
		return strconv.AppendInt(nil, v, 10)
	}
}

// Decode parses a representation produced by Encode.
func (c Codec) Decode(raw []byte) (int64, error) {
	switch c {
	case CodecBinary:
		return decodeBinary(raw)
	default:
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, wrapError(ErrValueCodec, "decimal '%s': %s", raw, err)
		}

		return v, nil
	}
}

// encodeBinary produces the shortest big-endian two's-complement form of v.
func encodeBinary(v int64) []byte {
	b := make([]byte, 8)

	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}

	for len(b) > 1 {
		if b[0] == 0x00 && b[1]&0x80 == 0 {
			b = b[1:]
			continue
		}

		if b[0] == 0xff && b[1]&0x80 != 0 {
			b = b[1:]
			continue
		}

		break
	}

	return b
}

func decodeBinary(raw []byte) (int64, error) {
	if len(raw) == 0 || len(raw) > 8 {
		return 0, wrapError(ErrValueCodec, "binary value of %d bytes", len(raw))
	}

	var v int64

	if raw[0]&0x80 != 0 {
		v = -1
	}

	for _, b := range raw {
		v = v<<8 | int64(b)
	}

	return v, nil
}

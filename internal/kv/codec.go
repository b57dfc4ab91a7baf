package kv

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// U64Size is the only accepted length of a stored u64 value.
const U64Size = 8

// EncodeU64 returns v as 8 little-endian bytes.
func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, U64Size), v)
}

// DecodeU64 reads an 8-byte little-endian value. Any other length is an
// error; values are never truncated or padded.
func DecodeU64(b []byte) (uint64, error) {
	if len(b) != U64Size {
		return 0, fmt.Errorf("u64 value must be %d bytes, got %d", U64Size, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DecodeUTF8 returns b as a string if it is valid UTF-8.
func DecodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid utf-8 sequence in %d-byte value", len(b))
	}
	return string(b), nil
}

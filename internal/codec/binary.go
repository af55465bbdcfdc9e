package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf16"
)

const (
	// StatHeaderLen is the fixed part of a binary stat block.
	StatHeaderLen = 18
	// MaxResolvedPathLen is the largest resolved path, in UTF-16 code units,
	// that fits the 15-bit length field.
	MaxResolvedPathLen = 1<<15 - 1

	fileBit = 1
)

var (
	ErrResolvedPathTooLong = errors.New("codec: resolved path exceeds 32767 code units")
	ErrShortBuffer         = errors.New("codec: buffer too short")
	ErrSizeMismatch        = errors.New("codec: content length does not match stat size")
)

// BinaryLen returns the encoded length of r.
func BinaryLen(r StatRecord) int {
	return StatHeaderLen + 2*len(utf16.Encode([]rune(r.ResolvedPath)))
}

// EncodeBinary encodes r in the dense binary layout.
func EncodeBinary(r StatRecord) ([]byte, error) {
	return AppendBinary(nil, r)
}

// AppendBinary appends the binary encoding of r to dst.
func AppendBinary(dst []byte, r StatRecord) ([]byte, error) {
	units := utf16.Encode([]rune(r.ResolvedPath))
	if len(units) > MaxResolvedPathLen {
		return dst, fmt.Errorf("%w: %d", ErrResolvedPathTooLong, len(units))
	}

	flags := uint16(len(units)) << 1
	if r.IsFile {
		flags |= fileBit
	}

	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(r.ModTime.UnixMilli())))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(r.Size)))
	dst = binary.LittleEndian.AppendUint16(dst, flags)
	for _, u := range units {
		dst = binary.LittleEndian.AppendUint16(dst, u)
	}
	return dst, nil
}

// DecodeBinary decodes one stat block from the front of buf and returns the
// number of bytes consumed.
func DecodeBinary(buf []byte) (StatRecord, int, error) {
	if len(buf) < StatHeaderLen {
		return StatRecord{}, 0, fmt.Errorf("%w: stat header needs %d bytes, have %d", ErrShortBuffer, StatHeaderLen, len(buf))
	}

	mtime := math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	size := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
	flags := binary.LittleEndian.Uint16(buf[16:18])

	n := int(flags >> 1)
	end := StatHeaderLen + 2*n
	if len(buf) < end {
		return StatRecord{}, 0, fmt.Errorf("%w: resolved path needs %d bytes, have %d", ErrShortBuffer, end, len(buf))
	}

	var resolved string
	if n > 0 {
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(buf[StatHeaderLen+2*i:])
		}
		resolved = string(utf16.Decode(units))
	}

	return StatRecord{
		IsFile:       flags&fileBit == fileBit,
		ModTime:      fromMillis(int64(mtime)),
		Size:         uint64(size),
		ResolvedPath: resolved,
	}, end, nil
}

// EncodeFile encodes a binary-mode single file read: stat block, then content.
func EncodeFile(r StatRecord, content []byte) ([]byte, error) {
	if uint64(len(content)) != r.Size {
		return nil, fmt.Errorf("%w: stat size %d, content %d", ErrSizeMismatch, r.Size, len(content))
	}
	out := make([]byte, 0, BinaryLen(r)+len(content))
	out, err := AppendBinary(out, r)
	if err != nil {
		return nil, err
	}
	return append(out, content...), nil
}

// DecodeFile splits a binary-mode single file read into stat and content.
func DecodeFile(buf []byte) (StatRecord, []byte, error) {
	r, n, err := DecodeBinary(buf)
	if err != nil {
		return StatRecord{}, nil, err
	}
	return r, buf[n:], nil
}

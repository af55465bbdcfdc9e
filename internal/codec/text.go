package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Encoding selects binary mode (Binary) or names a text encoding.
type Encoding string

const (
	// Binary selects the dense binary representation.
	Binary Encoding = ""
	// UTF8 is the default text encoding.
	UTF8 Encoding = "utf8"
	// Auto detects the charset of the content before decoding it.
	Auto Encoding = "auto"
)

// IsBinary reports whether e selects binary mode.
func (e Encoding) IsBinary() bool {
	return e == Binary
}

var ErrUnsupportedEncoding = errors.New("codec: unsupported encoding")

// IsBinaryContent reports whether data looks like non-text content that
// would be corrupted by text transcoding.
func IsBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return false
		}
	}
	return true
}

// DetectCharset guesses the charset of data, defaulting to utf-8.
func DetectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// DecodeText transcodes data from enc to a UTF-8 string.
func DecodeText(data []byte, enc Encoding) (string, error) {
	name := string(enc)
	if enc == Auto {
		name = DetectCharset(data)
	}
	e, canonical := charset.Lookup(name)
	if e == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	if canonical == "utf-8" {
		return string(data), nil
	}
	out, err := e.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", canonical, err)
	}
	return string(out), nil
}

// EncodeText transcodes a UTF-8 string into enc. Auto writes UTF-8.
func EncodeText(text string, enc Encoding) ([]byte, error) {
	name := string(enc)
	if enc == Auto {
		name = "utf-8"
	}
	e, canonical := charset.Lookup(name)
	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	if canonical == "utf-8" {
		return []byte(text), nil
	}
	out, err := e.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", canonical, err)
	}
	return out, nil
}

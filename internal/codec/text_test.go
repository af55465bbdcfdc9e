package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredRoundTrip(t *testing.T) {
	r := NewStatRecord(false, mtime, 96, "/real/dir")

	data, err := MarshalStat(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isFile":false`)
	assert.Contains(t, string(data), `"resolvedPath":"/real/dir/"`)

	got, err := UnmarshalStat(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestStructuredOmitsAbsentResolvedPath(t *testing.T) {
	data, err := MarshalStat(NewStatRecord(true, mtime, 1, ""))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "resolvedPath")
}

func TestIsBinaryContent(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"ascii", []byte("hello world\n"), false},
		{"utf8", []byte("héllo wörld ✓\n"), false},
		{"json", []byte(`{"a": [1, 2, 3]}`), false},
		{"html", []byte("<!DOCTYPE html><html><body>hi</body></html>"), false},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"), true},
		{"nul bytes", []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe, 0x00, 0x10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBinaryContent(tt.data))
		})
	}
}

func TestTextTranscoding(t *testing.T) {
	latin1, err := EncodeText("café", Encoding("latin1"))
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, latin1)

	text, err := DecodeText(latin1, Encoding("latin1"))
	require.NoError(t, err)
	assert.Equal(t, "café", text)

	utf, err := EncodeText("café", UTF8)
	require.NoError(t, err)
	assert.Equal(t, []byte("café"), utf)

	text, err = DecodeText([]byte("café"), Encoding("UTF-8"))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestUnsupportedEncoding(t *testing.T) {
	_, err := DecodeText([]byte("x"), Encoding("klingon"))
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	_, err = EncodeText("x", Encoding("klingon"))
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestAutoEncodingDecodesUTF8(t *testing.T) {
	text, err := DecodeText([]byte("plain ascii text is valid utf-8 as well"), Auto)
	require.NoError(t, err)
	assert.Equal(t, "plain ascii text is valid utf-8 as well", text)
}

func TestEncodingIsBinary(t *testing.T) {
	assert.True(t, Binary.IsBinary())
	assert.False(t, UTF8.IsBinary())
}

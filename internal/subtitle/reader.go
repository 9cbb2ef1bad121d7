package subtitle

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// NewReader wraps r so that a leading byte-order mark is honoured and
// removed. UTF-16 input with a BOM is transcoded to UTF-8. Everything else
// must be valid UTF-8: reads fail with encoding.ErrInvalidUTF8 instead of
// passing replacement characters on to the model.
func NewReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(3)
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return transform.NewReader(br, encoding.UTF8Validator)
	case bytes.HasPrefix(head, bomUTF16BE), bytes.HasPrefix(head, bomUTF16LE):
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	default:
		return transform.NewReader(br, encoding.UTF8Validator)
	}
}

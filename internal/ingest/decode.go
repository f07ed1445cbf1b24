package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// decodeText returns data as UTF-8 with normalized line endings. UTF-8 is
// tried first, then UTF-16 by BOM, then Windows-1252 and finally Latin-1,
// which accepts any byte sequence. The name of the encoding used is returned.
func decodeText(data []byte) (string, string) {
	var text, name string

	switch {
	case bytes.HasPrefix(data, utf8BOM):
		text, name = string(data[len(utf8BOM):]), "utf-8"
	case bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM):
		if s, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), data); ok {
			text, name = s, "utf-16"
		}
	case utf8.Valid(data):
		text, name = string(data), "utf-8"
	}

	if name == "" {
		if s, ok := decodeWith(charmap.Windows1252, data); ok {
			text, name = s, "windows-1252"
		} else {
			s, _ = decodeWith(charmap.ISO8859_1, data)
			text, name = s, "iso-8859-1"
		}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, name
}

// decodeWith reports false when the decoder failed or had to substitute
// U+FFFD for bytes it could not map.
func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	s := string(out)
	return s, !strings.ContainsRune(s, utf8.RuneError)
}

package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ToUTF8 converts text read from a WIN1252 Firebird column to UTF-8.
// Valid UTF-8 input is returned untouched apart from CHAR padding removal
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	if utf8.Valid(b) {
		return strings.TrimRight(string(b), " ")
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return strings.TrimRight(string(b), " ")
	}

	return strings.TrimRight(string(decoded), " ")
}

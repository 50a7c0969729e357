package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUTF8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{name: "ascii with char padding", in: []byte("Omega     "), want: "Omega"},
		{name: "already utf8", in: []byte("Genève"), want: "Genève"},
		{name: "win1252 e acute", in: []byte{'G', 'e', 'n', 0xE8, 'v', 'e'}, want: "Genève"},
		{name: "win1252 euro sign", in: []byte{0x80, ' ', '4', '2', '0', '0'}, want: "€ 4200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ToUTF8(tt.in))
		})
	}
}

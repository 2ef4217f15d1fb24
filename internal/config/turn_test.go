package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTURNURL(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    TURNAddr
		wantErr bool
	}{
		{"turn default port", "turn:turn.example.com", TURNAddr{Secure: false, Host: "turn.example.com", Port: 3478}, false},
		{"turns default port", "turns:turn.example.com", TURNAddr{Secure: true, Host: "turn.example.com", Port: 5349}, false},
		{"turn explicit port", "turn:turn.example.com:3479", TURNAddr{Secure: false, Host: "turn.example.com", Port: 3479}, false},
		{"turns explicit port", "turns:turn.example.com:5350", TURNAddr{Secure: true, Host: "turn.example.com", Port: 5350}, false},
		{"missing scheme", "turn.example.com", TURNAddr{}, true},
		{"empty host", "turn:", TURNAddr{}, true},
		{"bad port", "turn:host:notaport", TURNAddr{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTURNURL(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

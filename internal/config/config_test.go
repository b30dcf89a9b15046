package config

import (
	"errors"
	"testing"
)

func TestParseBind(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort string
		wantErr  error
	}{
		{"http://127.0.0.1:9000", "127.0.0.1", "9000", nil},
		{"http://127.0.0.1", "127.0.0.1", defaultPort, nil},
		{"http://[::1]:9000", "[::1]", "9000", nil},
		{"http://[::1]", "[::1]", defaultPort, nil},
		{"https://127.0.0.1:9000", "", "", ErrInvalidURIScheme},
		{"127.0.0.1:9000", "", "", ErrInvalidURIScheme},
	}
	for _, c := range cases {
		host, port, err := parseBind(c.in)
		if c.wantErr != nil {
			if !errors.Is(err, c.wantErr) {
				t.Errorf("parseBind(%q) err = %v, want %v", c.in, err, c.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBind(%q): %v", c.in, err)
			continue
		}
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("parseBind(%q) = (%q, %q), want (%q, %q)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}

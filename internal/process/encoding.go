// ABOUTME: Text encoding for compiler stdin and captured output
// ABOUTME: Resolves WHATWG encoding names through golang.org/x/text

package process

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// codec resolves an encoding label such as "utf-8" or "latin1".
func codec(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

func encodeString(enc encoding.Encoding, s string) ([]byte, error) {
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// decodeBytes never fails: undecodable input is returned as-is.
func decodeBytes(enc encoding.Encoding, b []byte) string {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

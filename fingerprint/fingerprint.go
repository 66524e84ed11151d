package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

var separator = []byte{'|'}

// Normalize returns the canonical form of raw used for hashing.
// Empty input yields an empty slice.
func Normalize(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte{}
	}
	if !utf8.Valid(raw) {
		return raw
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return raw
	}
	// A second value (or garbage) after the first makes the body opaque.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return raw
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}

// Digest returns the lower-hex SHA-256 of METHOD|path|Normalize(raw).
func Digest(method, path string, raw []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write(separator)
	h.Write([]byte(path))
	h.Write(separator)
	h.Write(Normalize(raw))
	return hex.EncodeToString(h.Sum(nil))
}

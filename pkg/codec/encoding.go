package codec

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidBase64 is returned when a value is not valid base64 in any supported alphabet.
var ErrInvalidBase64 = errors.New("invalid base64 value")

// DecodeBase64 decodes a base64-encoded string to bytes.
// It is used for the params of GET queries, which carry the same payload a POST
// body would, base64 encoded. Both the standard and the URL-safe alphabet are
// accepted, with or without padding.
func DecodeBase64(encoded string) ([]byte, error) {
	unpadded := strings.TrimRight(encoded, "=")

	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(unpadded); err == nil {
			return decoded, nil
		}
	}

	return nil, ErrInvalidBase64
}

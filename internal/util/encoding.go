package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds compatibility forms so visually identical input compares equal.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeKeyHex decodes a hex-encoded 32-byte key, tolerating surrounding whitespace.
func DecodeKeyHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("key must be exactly %d bytes, got %d", AESKeySize, len(key))
	}
	return key, nil
}

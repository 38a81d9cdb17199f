package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// FingerprintQR encodes a hex file fingerprint as a QR code PNG. Non-hex
// characters are dropped first.
func FingerprintQR(fingerprint string, size int) ([]byte, error) {
	normalized := sanitizeHex(fingerprint)
	if normalized == "" {
		return nil, fmt.Errorf("fingerprint is empty")
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode("blake3:"+normalized, qrcode.Medium, size)
}

func sanitizeHex(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r)
		}
	}
	return b.String()
}

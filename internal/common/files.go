package common

import (
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Hasher accumulates a blake3-256 digest.
type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: blake3.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// FingerprintFile returns the blake3-256 hex digest of the file at path and
// its size in bytes.
func FingerprintFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := NewHasher()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return h.Sum(), n, nil
}

// ShortFingerprint trims a digest for display.
func ShortFingerprint(sum string) string {
	if len(sum) <= 16 {
		return sum
	}
	return sum[:16]
}

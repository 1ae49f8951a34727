// Package domain contains the content-addressed pod and pipeline model,
// its canonical encoding, and the dependency graph built from it.
package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"go.trai.ch/zerr"
)

// DigestSize is the length of a digest in bytes.
const DigestSize = sha256.Size

// Digest is the SHA-256 content address of a canonical blob.
type Digest [DigestSize]byte

// Hash returns the digest of b.
func Hash(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// ParseDigest parses the hex form of a digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(DigestSize) {
		return d, zerr.With(zerr.Wrap(ErrInvalidDigest, "digest must be 64 hex characters"), "digest", s)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, zerr.With(zerr.Wrap(ErrInvalidDigest, err.Error()), "digest", s)
	}
	return d, nil
}

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns an abbreviated hex form for display.
func (d Digest) Short() string {
	return d.String()[:12]
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Compare orders digests by their bytes.
func (d Digest) Compare(o Digest) int {
	return bytes.Compare(d[:], o[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

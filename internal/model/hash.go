package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainContent is the domain prefix for content digests.
// Version suffix enables future algorithm migration.
const DomainContent = "classver/content/v1"

// ContentDigest computes the content address of a stored file.
// Format: hex(SHA256(domain + 0x00 + data)). The null byte separator
// prevents domain/data boundary ambiguity.
func ContentDigest(data []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Package cachekey derives the deterministic cache identifiers that make
// at-most-once evaluation possible. The same (transcript content, dimension,
// rubric version) tuple must always map to the same key.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Separator joins the hash, dimension, and rubric version components
const Separator = ":"

// DeriveKey computes a stable cache key from normalized transcript text, the
// evaluation dimension, and the rubric version. Pure: no I/O, no clock, no
// randomness.
//
// The text is whitespace-trimmed but case-preserved before hashing, so
// incidental leading/trailing whitespace does not fragment the cache while
// meaningful content changes always produce a different key.
func DeriveKey(text, dimension, rubricVersion string) (string, error) {
	if dimension == "" {
		return "", fmt.Errorf("dimension is empty")
	}
	if rubricVersion == "" {
		return "", fmt.Errorf("rubric version is empty")
	}
	if strings.Contains(dimension, Separator) {
		return "", fmt.Errorf("dimension %q contains separator %q", dimension, Separator)
	}
	if strings.Contains(rubricVersion, Separator) {
		return "", fmt.Errorf("rubric version %q contains separator %q", rubricVersion, Separator)
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:]) + Separator + dimension + Separator + rubricVersion, nil
}

// Components splits a derived key back into (hash, dimension, version)
func Components(key string) (hash, dimension, version string, err error) {
	parts := strings.Split(key, Separator)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed cache key %q", key)
	}
	return parts[0], parts[1], parts[2], nil
}

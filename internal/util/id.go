package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random document identifier, optionally namespaced
// with a short prefix ("usr", "prj", "tsk").
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

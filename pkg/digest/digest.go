// Package digest provides running checksums over byte streams.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"sync"
)

// MD5 is a running md5 checksum accumulator.
// Update and Sum are safe for concurrent use.
type MD5 struct {
	h  hash.Hash
	mu sync.Mutex
}

// NewMD5 creates a fresh md5 accumulator.
func NewMD5() *MD5 {
	return &MD5{h: md5.New()}
}

// Update folds the given bytes into the accumulator.
func (d *MD5) Update(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.h.Write(p)
}

// Sum returns the md5 of all folded bytes as a lower-case hex string.
// The result is always 32 characters long, leading zeros included.
func (d *MD5) Sum() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return hex.EncodeToString(d.h.Sum(nil))
}

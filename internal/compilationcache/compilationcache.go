// Package compilationcache stores compiled methods across compiler instances
// and processes.
package compilationcache

import (
	"io"
)

// Cache is the interface of compilation caches. The compiler keeps nothing in
// memory between calls, so without a Cache every method is compiled again.
//
// Entries are opaque to the cache: the compiler serializes a compiled method
// on Add and decodes it after Get. A cache may also verify entries, for example
// by signing content on Add and checking the signature on Get.
//
// Methods are called concurrently, so implementations must be goroutine-safe.
//
// See NewFileCache for the reference implementation.
type Cache interface {
	// Get returns the content stored for key, and ok=false with a nil error
	// when there is none. The caller closes content.
	Get(key Key) (content io.ReadCloser, ok bool, err error)
	// Add stores content for key, replacing any previous entry. Get must
	// return it unmodified.
	Add(key Key, content io.Reader) (err error)
	// Delete purges the entry of key, which the compiler could not decode.
	// Deleting a missing entry is not an error.
	Delete(key Key) (err error)
}

// Key identifies a cache entry: a 256-bit digest of the method, the compiler
// configuration and the compiler version.
type Key = [32]byte

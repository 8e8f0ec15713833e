package filestore

import (
	"io"
)

// FileStore stores uploaded blobs under a server-assigned name and serves
// them back. The rest of the system treats it as "store blob, get back a
// retrievable handle".
type FileStore interface {
	// Save writes the blob under the given name and returns the number of
	// bytes stored.
	Save(r io.Reader, name string) (int64, error)

	// Get retrieves the blob content for the given name.
	Get(name string) (io.ReadCloser, error)
}

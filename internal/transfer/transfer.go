// Package transfer moves named byte streams to and from the print provider's
// remote directories.
package transfer

import (
	"context"
	"io"
	"strings"
)

// ProcessingSuffix marks a response file as claimed. A claimed file is
// invisible to List, so a crash between discovery and processing never
// causes a second claim.
const ProcessingSuffix = ".processing"

// Channel is the file-transfer port to the print provider. Send writes one
// named file into the provider's inbound directory; the remaining methods
// operate on the provider's outbound directory where response files appear.
type Channel interface {
	// Send streams the reader's bytes to a file with the given name.
	Send(ctx context.Context, filename string, r io.Reader) error

	// ListResponseFiles returns the names of unclaimed response files.
	ListResponseFiles(ctx context.Context) ([]string, error)

	// Claim atomically renames a response file with ProcessingSuffix and
	// returns the claimed name.
	Claim(ctx context.Context, filename string) (string, error)

	// Fetch opens a claimed response file for reading.
	Fetch(ctx context.Context, filename string) (io.ReadCloser, error)

	// Remove deletes a claimed response file. Called only after its content
	// has been durably applied.
	Remove(ctx context.Context, filename string) error
}

// IsClaimed reports whether a filename carries the processing suffix.
func IsClaimed(filename string) bool {
	return strings.HasSuffix(filename, ProcessingSuffix)
}

// partialUploadSuffix marks an upload still in flight. An archive is written
// under this name first and renamed to its final name only once complete.
const partialUploadSuffix = ".partial"

// PartialUploadName returns the temp name an upload streams into before it
// is renamed to filename.
func PartialUploadName(filename string) string {
	return filename + partialUploadSuffix
}

package print

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
)

// PhotoStore reads photo bytes from object storage as a stream.
type PhotoStore interface {
	Photo(ctx context.Context, location string) (io.ReadCloser, error)
}

// StreamArchive produces the batch archive: the manifest as the first zip
// entry, then one entry per photo at its remapped path, each photo streamed
// from object storage straight into its entry.
//
// Generation runs on its own goroutine and the bytes flow through an io.Pipe,
// so the caller can hand the returned reader to the transfer channel and let
// transmission backpressure throttle generation; the whole archive is never
// held in memory. Any generation failure closes the pipe with that error,
// which the consumer observes on its next read. There is no partial-success
// mode: either the archive is wholly produced or the transfer is abandoned.
func StreamArchive(ctx context.Context, store PhotoStore, manifestName string, rows []Row, photos []PhotoRef) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(writeArchive(ctx, pw, store, manifestName, rows, photos))
	}()

	return pr
}

func writeArchive(ctx context.Context, w io.Writer, store PhotoStore, manifestName string, rows []Row, photos []PhotoRef) error {
	zw := zip.NewWriter(w)

	manifest, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry %q: %w", manifestName, err)
	}
	if err := WriteManifest(manifest, rows); err != nil {
		return fmt.Errorf("failed to write manifest %q: %w", manifestName, err)
	}

	for _, photo := range photos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writePhotoEntry(ctx, zw, store, photo); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writePhotoEntry(ctx context.Context, zw *zip.Writer, store PhotoStore, photo PhotoRef) error {
	entry, err := zw.Create(photo.Path)
	if err != nil {
		return fmt.Errorf("failed to create photo entry %q: %w", photo.Path, err)
	}

	source, err := store.Photo(ctx, photo.Location)
	if err != nil {
		return fmt.Errorf("failed to open photo %q: %w", photo.Location, err)
	}
	defer source.Close()

	if _, err := io.Copy(entry, source); err != nil {
		return fmt.Errorf("failed to copy photo %q into archive: %w", photo.Location, err)
	}
	return nil
}

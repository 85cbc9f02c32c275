package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/extraviadosmx/poster-backup/internal/state"
)

// manifestSnapshotKey is where a compressed copy of the manifest database
// lives in the target bucket.
const manifestSnapshotKey = ".poster-backup/manifest.db.gz"

type snapshotStorage interface {
	download(ctx context.Context, w io.WriterAt, key string) error
	putObject(ctx context.Context, r io.Reader, key, contentType string) error
}

// downloadManifestFromBucket restores a compressed manifest snapshot from a
// bucket into a local database at path.
func downloadManifestFromBucket(ctx context.Context, tmpdir, path string, storage snapshotStorage, key string) (_ *state.Store, err error) {
	tmpfile, err := state.CreateUnlinkedTemp(tmpdir, "download*")
	if err != nil {
		return nil, err
	}

	defer tmpfile.Close()

	if err := storage.download(ctx, tmpfile, key); err != nil {
		return nil, fmt.Errorf("object %q download: %w", key, err)
	}

	if _, err := tmpfile.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return state.OpenCompressed(path, tmpfile)
}

// uploadManifestToBucket uploads a compressed manifest snapshot to a bucket.
func uploadManifestToBucket(ctx context.Context, s *state.Store, tmpdir string, storage snapshotStorage, key string) (err error) {
	f, err := s.WriteCompressed(tmpdir)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return storage.putObject(ctx, f, key, "application/gzip")
}

// openManifestStore opens the local manifest database. A file that does not
// exist yet is restored from the bucket snapshot, or created empty when the
// bucket has none.
func openManifestStore(ctx context.Context, logger *slog.Logger, tmpdir, path string, storage snapshotStorage) (*state.Store, error) {
	switch _, err := os.Stat(path); {
	case err == nil:
		return state.Open(path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	s, err := downloadManifestFromBucket(ctx, tmpdir, path, storage, manifestSnapshotKey)

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Manifest restored from bucket snapshot",
			slog.String("path", path),
			slog.String("key", manifestSnapshotKey),
		)

		return s, nil

	case isObjectNotFound(err):
		return state.Open(path)
	}

	return nil, err
}

package state

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

func CreateUnlinkedTemp(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(f.Name()); err != nil {
		err = errors.Join(err, f.Close())
		return nil, err
	}

	return f, nil
}

// WriteCompressed writes a compressed manifest snapshot. Callers must close
// the returned reader.
func (s *Store) WriteCompressed(tmpdir string) (io.ReadCloser, error) {
	tmpfile, err := CreateUnlinkedTemp(tmpdir, "snapshot*")
	if err != nil {
		return nil, err
	}

	zw := gzip.NewWriter(tmpfile)

	if _, err := s.WriteTo(zw); err != nil {
		return nil, errors.Join(fmt.Errorf("manifest snapshot: %w", err), tmpfile.Close())
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Join(fmt.Errorf("compression: %w", err), tmpfile.Close())
	}

	if _, err := tmpfile.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Join(err, tmpfile.Close())
	}

	return tmpfile, nil
}

// OpenCompressed restores a manifest snapshot into a database file at path
// and opens it.
func OpenCompressed(path string, r io.Reader) (_ *Store, err error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompression: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err := io.Copy(f, zr); err != nil {
		return nil, fmt.Errorf("copying: %w", err)
	}

	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("decompression: %w", err)
	}

	return Open(path)
}

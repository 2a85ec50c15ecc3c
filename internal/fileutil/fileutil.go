package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// ErrTooLarge reports a stream that exceeded its size limit.
var ErrTooLarge = errors.New("payload exceeds size limit")

// WriteStream copies r into dst atomically: readers of dst see either the
// previous file or the complete new one. A positive limit caps the number
// of bytes accepted; exceeding it leaves dst untouched and returns
// ErrTooLarge.
func WriteStream(dst string, r io.Reader, limit int64) (int64, error) {
	if r == nil {
		return 0, errors.New("nil reader")
	}
	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(pending, src)
	if err != nil {
		return written, err
	}
	if limit > 0 && written > limit {
		return written, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return written, fmt.Errorf("publish %s: %w", dst, err)
	}
	return written, nil
}

// CopyFile streams src to dst atomically with default permissions.
func CopyFile(src, dst string) error {
	_, err := CopyFileLimit(src, dst, 0)
	return err
}

// CopyFileLimit streams src to dst atomically, refusing files over limit
// bytes when limit is positive.
func CopyFileLimit(src, dst string, limit int64) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return WriteStream(dst, in, limit)
}

// MoveFile moves src to dst. Across filesystems it falls back to an atomic
// copy followed by removing src, so dst never holds a partial file.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

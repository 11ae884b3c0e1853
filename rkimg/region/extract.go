package region

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// ChunkSize bounds the copy buffer so that peak memory stays constant
	// regardless of how large a partition is.
	ChunkSize = 16 * 1024
)

var (
	ErrInsufficientLength = errors.New("insufficient length in source file")
)

// Extract copies exactly length bytes starting at offset from src into a
// newly created file at fullPath. Every read must return the full requested
// chunk: a short read means the offset/length pair points past the end of
// the source, which is terminal and never retried.
func Extract(src io.ReadSeeker, offset uint64, length uint64, fullPath string) error {
	if _, err := src.Seek(int64(offset), io.SeekStart); err != nil {
		err := errors.Wrapf(err, "Extract error: seek to offset %#x", offset)
		return err
	}

	out, err := os.Create(fullPath)
	if err != nil {
		err := errors.Wrapf(err, `Extract error: create destination file "%s"`, fullPath)
		return err
	}
	defer out.Close()

	buffer := make([]byte, ChunkSize)
	remaining := length
	for remaining > 0 {
		readLen := uint64(len(buffer))
		if remaining < readLen {
			readLen = remaining
		}
		if _, err := io.ReadFull(src, buffer[:readLen]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err := errors.Wrapf(
					ErrInsufficientLength,
					`Extract error: %d bytes left of region [%#x, %#x) for "%s"`,
					remaining, offset, offset+length, fullPath,
				)
				return err
			}
			err := errors.Wrap(err, "Extract error: read source file")
			return err
		}
		if _, err := out.Write(buffer[:readLen]); err != nil {
			err := errors.Wrapf(err, `Extract error: write to "%s"`, fullPath)
			return err
		}
		remaining -= readLen
	}

	return nil
}

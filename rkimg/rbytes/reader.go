package rbytes

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

func NewReader(bs []byte) *Reader {
	return &Reader{
		Reader: *bytes.NewReader(bs),
	}
}

// ReadBytes reads exactly n bytes. A short read is an error, since every
// header field in the supported formats has a fixed width.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	bs := make([]byte, n)
	if n == 0 {
		return bs, nil
	}
	if _, err := io.ReadFull(r, bs); err != nil {
		err := errors.Wrapf(err, "ReadBytes error: read %d bytes", n)
		return nil, err
	}
	return bs, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	bs, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(bs), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	bs, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(bs), nil
}

// Skip advances the reader by n bytes without touching them.
func (r *Reader) Skip(n int) error {
	if _, err := r.Seek(int64(n), io.SeekCurrent); err != nil {
		err := errors.Wrapf(err, "Skip error: skip %d bytes", n)
		return err
	}
	return nil
}

// CString decodes a fixed-width null-terminated byte field into text up to
// (not including) the first null byte. ok is false when the field holds no
// null byte at all; the whole field is still returned as text so that the
// caller can decide between a fallback value and skipping the record.
func CString(bs []byte) (string, bool) {
	index := bytes.IndexByte(bs, 0)
	if index < 0 {
		return string(bs), false
	}
	return string(bs[:index]), true
}

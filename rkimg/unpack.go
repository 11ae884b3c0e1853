// Package rkimg recognizes and unpacks Rockchip firmware update images.
//
// An image is either an RKFW wrapper (flashing-tool container holding a
// bootloader blob and an embedded RKAF package) or a bare RKAF update
// package. Unpack is the single entry point: it looks at the first four
// bytes and routes the file to the matching parser.
package rkimg

import (
	"bytes"
	"os"

	"github.com/pkg/errors"

	"rkunpack/rkimg/rkaf"
	"rkunpack/rkimg/rkfw"
)

type (
	// Result is a tagged union over the two image formats: exactly one of
	// the fields is non-nil after a successful Unpack.
	Result struct {
		Rkfw *rkfw.Info `json:"rkfw,omitempty"`
		Rkaf *rkaf.Info `json:"rkaf,omitempty"`
	}
)

var (
	ErrUnknownSignature = errors.New("unknown image signature")
)

// Unpack reads the image at filePath, dispatches on its signature and
// extracts every region into dstPath. The destination directory is created
// by the chosen parser, so an unrecognized file leaves no trace on disk.
func Unpack(filePath string, dstPath string) (*Result, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		err := errors.Wrapf(err, `Unpack error: read "%s"`, filePath)
		return nil, err
	}
	if len(buf) < 4 {
		err := errors.Wrapf(ErrUnknownSignature, `Unpack error: "%s" holds only %d bytes`, filePath, len(buf))
		return nil, err
	}

	signature := buf[:4]
	switch {
	case bytes.Equal(signature, rkaf.SignatureBytes):
		info, err := rkaf.Unpack(filePath, dstPath)
		if err != nil {
			return nil, err
		}
		return &Result{Rkaf: info}, nil
	case bytes.Equal(signature, rkfw.SignatureBytes):
		info, err := rkfw.Unpack(buf, dstPath)
		if err != nil {
			return nil, err
		}
		return &Result{Rkfw: info}, nil
	default:
		err := errors.Wrapf(ErrUnknownSignature, "Unpack error: signature % x", signature)
		return nil, err
	}
}
